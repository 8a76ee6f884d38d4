// Package dashboard builds a point-in-time report of the monitored repository
// and serves it as text or JSON.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-monitor/internal/config"
	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/store"
)

// Settings is the part of the configuration shown on the dashboard.
type Settings struct {
	Owner              string   `json:"owner"`
	Name               string   `json:"name"`
	ThresholdDays      int      `json:"threshold_days"`
	CheckIntervalHours int      `json:"check_interval_hours"`
	LookbackHours      int      `json:"pr_lookback_hours"`
	Recipients         []string `json:"recipients"`
	SMTPHost           string   `json:"smtp_host"`
	SMTPPort           int      `json:"smtp_port"`
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Owner:              cfg.Repository.Owner,
		Name:               cfg.Repository.Name,
		ThresholdDays:      cfg.Monitoring.IssueThresholdDays,
		CheckIntervalHours: cfg.Monitoring.CheckIntervalHours,
		LookbackHours:      cfg.Monitoring.PRLookbackHours,
		Recipients:         append([]string(nil), cfg.Email.Recipients...),
		SMTPHost:           cfg.Email.SMTPHost,
		SMTPPort:           cfg.Email.SMTPPort,
	}
}

type IssueView struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	AgeDays   int      `json:"age_days"`
	Stale     bool     `json:"stale"`
	Labels    []string `json:"labels"`
	Assignees []string `json:"assignees"`
}

type PullRequestView struct {
	Number int             `json:"number"`
	Title  string          `json:"title"`
	URL    string          `json:"url"`
	Status domain.PRStatus `json:"status"`
	At     *time.Time      `json:"at,omitempty"`
	Labels []string        `json:"labels"`
}

type RunInfo struct {
	At                time.Time `json:"at"`
	IssuesFound       int       `json:"issues_found"`
	PRsFound          int       `json:"prs_found"`
	NotificationsSent int       `json:"notifications_sent"`
	Error             string    `json:"error,omitempty"`
}

type Report struct {
	GeneratedAt        time.Time                 `json:"generated_at"`
	Settings           Settings                  `json:"settings"`
	Repository         *domain.RepositorySummary `json:"repository"`
	Issues             []IssueView               `json:"issues"`
	PullRequests       []PullRequestView         `json:"pull_requests"`
	StaleCount         int                       `json:"stale_count"`
	MeanIssueAgeDays   float64                   `json:"mean_issue_age_days"`
	MedianIssueAgeDays float64                   `json:"median_issue_age_days"`
	LastRun            *RunInfo                  `json:"last_run,omitempty"`
	LastNotifiedAt     *time.Time                `json:"last_notified_at,omitempty"`
}

// History is the stored monitoring history. *store.Database satisfies it.
type History interface {
	LoadState(state *domain.MonitorState) error
	GetLastRun(owner, name string) (*store.RunLog, error)
}

type Builder struct {
	fetcher gateway.Fetcher
	history History
	logger  *log.Logger
	now     func() time.Time
}

// NewBuilder creates a Builder. history may be nil, in which case the report
// carries no run information.
func NewBuilder(fetcher gateway.Fetcher, history History, logger *log.Logger) *Builder {
	return &Builder{
		fetcher: fetcher,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// Build fetches the repository summary, open issues and recent pull requests
// concurrently and assembles the report.
func (b *Builder) Build(ctx context.Context, settings Settings) (*Report, error) {
	b.logger.Printf("Dashboard: building report for %s/%s...", settings.Owner, settings.Name)

	var (
		summary *domain.RepositorySummary
		issues  []domain.Issue
		prs     []domain.PullRequest
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		summary, err = b.fetcher.FetchRepositorySummary(egCtx, settings.Owner, settings.Name)
		return err
	})
	eg.Go(func() error {
		var err error
		issues, err = b.fetcher.FetchOpenIssues(egCtx, settings.Owner, settings.Name)
		return err
	})
	eg.Go(func() error {
		var err error
		prs, err = b.fetcher.FetchRecentPullRequests(egCtx, settings.Owner, settings.Name, settings.LookbackHours)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	now := b.now()
	report := &Report{
		GeneratedAt:  now,
		Settings:     settings,
		Repository:   summary,
		Issues:       make([]IssueView, 0, len(issues)),
		PullRequests: make([]PullRequestView, 0, len(prs)),
	}

	ages := make(stats.Float64Data, 0, len(issues))
	for _, issue := range issues {
		age := issue.AgeDays(now)
		stale := age >= settings.ThresholdDays
		if stale {
			report.StaleCount++
		}
		ages = append(ages, float64(age))
		report.Issues = append(report.Issues, IssueView{
			Number:    issue.Number,
			Title:     issue.Title,
			URL:       issue.URL,
			AgeDays:   age,
			Stale:     stale,
			Labels:    labelNames(issue.Labels),
			Assignees: assigneeLogins(issue.Assignees),
		})
	}
	if len(ages) > 0 {
		report.MeanIssueAgeDays, _ = stats.Mean(ages)
		report.MedianIssueAgeDays, _ = stats.Median(ages)
	}

	for _, pr := range prs {
		report.PullRequests = append(report.PullRequests, PullRequestView{
			Number: pr.Number,
			Title:  pr.Title,
			URL:    pr.URL,
			Status: pr.Status(),
			At:     pr.EventTime(),
			Labels: labelNames(pr.Labels),
		})
	}

	if b.history != nil {
		if err := b.attachHistory(report, settings); err != nil {
			return nil, err
		}
	}

	b.logger.Printf("Dashboard: %d open issue(s), %d stale, %d recent pull request(s)", len(issues), report.StaleCount, len(prs))
	return report, nil
}

func (b *Builder) attachHistory(report *Report, settings Settings) error {
	state := &domain.MonitorState{Owner: settings.Owner, Name: settings.Name}
	if err := b.history.LoadState(state); err != nil {
		return fmt.Errorf("failed to load monitor history: %w", err)
	}
	report.LastNotifiedAt = state.LastNotifiedAt

	last, err := b.history.GetLastRun(settings.Owner, settings.Name)
	if err != nil {
		return fmt.Errorf("failed to load last run: %w", err)
	}
	if last != nil {
		report.LastRun = &RunInfo{
			At:                last.RunAt,
			IssuesFound:       last.IssuesFound,
			PRsFound:          last.PRsFound,
			NotificationsSent: last.NotificationsSent,
			Error:             last.ErrorMessage.String,
		}
	}
	return nil
}

func labelNames(labels []domain.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func assigneeLogins(assignees []domain.Assignee) []string {
	logins := make([]string, 0, len(assignees))
	for _, a := range assignees {
		logins = append(logins, a.Login)
	}
	return logins
}
