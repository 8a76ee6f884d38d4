package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/naka-gawa/repo-monitor/internal/domain"
)

const displayTime = "2006-01-02 15:04"

var issueAlertTmpl = template.Must(template.New("issue_alert").Parse(`<html>
<body style="font-family: Arial, sans-serif; margin: 20px;">
<div style="background-color: #f44336; color: white; padding: 15px; border-radius: 5px;">
  <h2>Issues Open Beyond {{.ThresholdDays}} Days</h2>
  <p>Repository: {{.RepoName}}</p>
</div>
<p>The following issues have been open for at least <strong>{{.ThresholdDays}} days</strong> and may require attention:</p>
{{range .Issues}}
<div style="border: 1px solid #ddd; margin: 10px 0; padding: 15px; border-radius: 5px;">
  <div><a href="{{.URL}}">#{{.Number}} - {{.Title}}</a></div>
  <div style="color: #666; font-size: 14px;">
    <strong>Age:</strong> {{.AgeDays}} days<br>
    <strong>Created:</strong> {{.Created}}<br>
    <strong>Last Updated:</strong> {{.Updated}}<br>
    {{if .Labels}}<strong>Labels:</strong> {{range .Labels}}<span style="background-color: #{{.Color}}; color: white; padding: 2px 6px; border-radius: 3px;">{{.Name}}</span> {{end}}<br>{{end}}
    {{if .Assignees}}<strong>Assignees:</strong> {{.Assignees}}{{end}}
  </div>
</div>
{{end}}
<p><a href="{{.RepoURL}}">View Repository on GitHub</a></p>
<hr>
<p style="color: #666; font-size: 12px;">Sent by repo-monitor on {{.GeneratedAt}}</p>
</body>
</html>
`))

var prNotificationTmpl = template.Must(template.New("pr_notification").Parse(`<html>
<body style="font-family: Arial, sans-serif; margin: 20px;">
<div style="background-color: #28a745; color: white; padding: 15px; border-radius: 5px;">
  <h2>Recent Pull Request Activity</h2>
  <p>Repository: {{.RepoName}}</p>
</div>
<p>The following pull requests were recently processed:</p>
{{range .PullRequests}}
<div style="border: 1px solid #ddd; border-left: 4px solid {{if eq .Status "merged"}}#28a745{{else}}#dc3545{{end}}; margin: 10px 0; padding: 15px; border-radius: 5px;">
  <div><a href="{{.URL}}">#{{.Number}} - {{.Title}}</a></div>
  <div style="color: #666; font-size: 14px;">
    <strong>Status:</strong> {{.Status}}<br>
    {{if .EventAt}}<strong>{{if eq .Status "merged"}}Merged{{else}}Closed{{end}}:</strong> {{.EventAt}}<br>{{end}}
    {{if .Labels}}<strong>Labels:</strong> {{range .Labels}}<span style="background-color: #{{.Color}}; color: white; padding: 2px 6px; border-radius: 3px;">{{.Name}}</span> {{end}}<br>{{end}}
    {{if .Assignees}}<strong>Assignees:</strong> {{.Assignees}}{{end}}
  </div>
</div>
{{end}}
<p><a href="{{.RepoURL}}">View Repository on GitHub</a></p>
<hr>
<p style="color: #666; font-size: 12px;">Sent by repo-monitor on {{.GeneratedAt}}</p>
</body>
</html>
`))

type issueView struct {
	Number    int
	Title     string
	URL       string
	AgeDays   int
	Created   string
	Updated   string
	Labels    []domain.Label
	Assignees string
}

type prView struct {
	Number    int
	Title     string
	URL       string
	Status    domain.PRStatus
	EventAt   string
	Labels    []domain.Label
	Assignees string
}

// ComposeIssueAlert builds the subject and HTML body of a stale-issue alert.
func ComposeIssueAlert(repoName, repoURL string, thresholdDays int, issues []domain.Issue, now time.Time) (string, string, error) {
	subject := fmt.Sprintf("[ALERT] Issues Open Beyond %d Days - %s", thresholdDays, repoName)
	views := make([]issueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, issueView{
			Number:    issue.Number,
			Title:     issue.Title,
			URL:       issue.URL,
			AgeDays:   issue.AgeDays(now),
			Created:   issue.CreatedAt.Format(displayTime),
			Updated:   issue.UpdatedAt.Format(displayTime),
			Labels:    issue.Labels,
			Assignees: joinLogins(issue.Assignees),
		})
	}
	var buf bytes.Buffer
	err := issueAlertTmpl.Execute(&buf, map[string]interface{}{
		"RepoName":      repoName,
		"RepoURL":       repoURL,
		"ThresholdDays": thresholdDays,
		"Issues":        views,
		"GeneratedAt":   now.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering issue alert: %w", err)
	}
	return subject, buf.String(), nil
}

// ComposePRNotification builds the subject and HTML body of a pull request update.
func ComposePRNotification(repoName, repoURL string, prs []domain.PullRequest, now time.Time) (string, string, error) {
	subject := fmt.Sprintf("[UPDATE] Pull Requests Merged - %s", repoName)
	views := make([]prView, 0, len(prs))
	for _, pr := range prs {
		v := prView{
			Number:    pr.Number,
			Title:     pr.Title,
			URL:       pr.URL,
			Status:    pr.Status(),
			Labels:    pr.Labels,
			Assignees: joinLogins(pr.Assignees),
		}
		if at := pr.EventTime(); at != nil {
			v.EventAt = at.Format(displayTime)
		}
		views = append(views, v)
	}
	var buf bytes.Buffer
	err := prNotificationTmpl.Execute(&buf, map[string]interface{}{
		"RepoName":     repoName,
		"RepoURL":      repoURL,
		"PullRequests": views,
		"GeneratedAt":  now.Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering pull request notification: %w", err)
	}
	return subject, buf.String(), nil
}

func joinLogins(assignees []domain.Assignee) string {
	var buf bytes.Buffer
	for i, a := range assignees {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(a.Login)
	}
	return buf.String()
}
