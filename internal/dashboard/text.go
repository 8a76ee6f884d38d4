package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const timeLayout = "2006-01-02 15:04"

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n %s\n%s\n", strings.Repeat("=", 60), title, strings.Repeat("=", 60))
}

// WriteText renders the report for a terminal.
func WriteText(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Repository Monitor Dashboard\n")
	fmt.Fprintf(w, "Generated at: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	header(w, "Configuration Summary")
	s := r.Settings
	fmt.Fprintf(w, "Repository:\t%s/%s\n", s.Owner, s.Name)
	fmt.Fprintf(w, "Issue Threshold:\t%d days\n", s.ThresholdDays)
	fmt.Fprintf(w, "Check Interval:\tevery %d hours\n", s.CheckIntervalHours)
	fmt.Fprintf(w, "PR Lookback:\t%d hours\n", s.LookbackHours)
	fmt.Fprintf(w, "Email Recipients:\t%s\n", strings.Join(s.Recipients, ", "))
	fmt.Fprintf(w, "SMTP Server:\t%s:%d\n", s.SMTPHost, s.SMTPPort)
	if r.LastRun != nil {
		status := "OK"
		if r.LastRun.Error != "" {
			status = "ERROR: " + r.LastRun.Error
		}
		fmt.Fprintf(w, "Last Run:\t%s (%s)\n", r.LastRun.At.Local().Format(timeLayout), status)
	} else {
		fmt.Fprintf(w, "Last Run:\tnever\n")
	}
	if r.LastNotifiedAt != nil {
		fmt.Fprintf(w, "Last Notified:\t%s\n", r.LastNotifiedAt.Local().Format(timeLayout))
	} else {
		fmt.Fprintf(w, "Last Notified:\tnever\n")
	}

	header(w, "Repository Status")
	if repo := r.Repository; repo != nil {
		description := repo.Description
		if description == "" {
			description = "No description"
		}
		fmt.Fprintf(w, "Repository:\t%s\n", repo.FullName)
		fmt.Fprintf(w, "Description:\t%s\n", description)
		fmt.Fprintf(w, "Open Issues:\t%d\n", repo.OpenIssueCount)
		fmt.Fprintf(w, "Stars:\t%d\n", repo.StarCount)
		fmt.Fprintf(w, "Forks:\t%d\n", repo.ForkCount)
		fmt.Fprintf(w, "URL:\t%s\n", repo.URL)
	}

	header(w, "Current Open Issues")
	if len(r.Issues) == 0 {
		fmt.Fprintln(w, "No open issues found")
	} else {
		fmt.Fprintln(w, "NUMBER\tAGE\tSTATUS\tTITLE\tLABELS\tASSIGNEES")
		for _, issue := range r.Issues {
			status := "recent"
			if issue.Stale {
				status = "OLD"
			}
			fmt.Fprintf(w, "#%d\t%dd\t%s\t%s\t%s\t%s\n",
				issue.Number, issue.AgeDays, status, truncate(issue.Title, 50),
				strings.Join(issue.Labels, ","), strings.Join(issue.Assignees, ","))
		}
		fmt.Fprintf(w, "\nMean age: %.1f days, median age: %.1f days\n", r.MeanIssueAgeDays, r.MedianIssueAgeDays)
		if r.StaleCount > 0 {
			fmt.Fprintf(w, "%d issue(s) exceed the %d-day threshold\n", r.StaleCount, s.ThresholdDays)
		}
	}

	header(w, "Recent Pull Request Activity")
	if len(r.PullRequests) == 0 {
		fmt.Fprintln(w, "No recent PR activity found")
	} else {
		fmt.Fprintln(w, "NUMBER\tSTATUS\tAT\tTITLE\tLABELS")
		for _, pr := range r.PullRequests {
			at := "-"
			if pr.At != nil {
				at = pr.At.Format(timeLayout)
			}
			fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n",
				pr.Number, pr.Status, at, truncate(pr.Title, 50), strings.Join(pr.Labels, ","))
		}
	}

	header(w, "Recommended Actions")
	if r.StaleCount > 0 {
		fmt.Fprintf(w, "%d issue(s) need attention:\n", r.StaleCount)
		for _, issue := range r.Issues {
			if issue.Stale {
				fmt.Fprintf(w, "  - #%d: %s (%d days old)\n", issue.Number, issue.Title, issue.AgeDays)
			}
		}
		fmt.Fprintln(w, "Consider assigning owners, adding priority labels or scheduling a triage.")
	} else {
		fmt.Fprintln(w, "All issues are within acceptable age limits")
	}
	fmt.Fprintf(w, "\nEmail notifications are sent for issues open %d+ days and for recently merged or closed pull requests.\n", s.ThresholdDays)

	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
