// Package evaluator classifies fetched repository data against the monitoring thresholds.
// All functions are pure and total: empty input yields empty output.
package evaluator

import (
	"time"

	"github.com/naka-gawa/repo-monitor/internal/domain"
)

// SelectStaleIssues returns the issues whose age at now is at least thresholdDays,
// in input order.
func SelectStaleIssues(issues []domain.Issue, thresholdDays int, now time.Time) []domain.Issue {
	stale := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.AgeDays(now) >= thresholdDays {
			stale = append(stale, issue)
		}
	}
	return stale
}

// SelectReportablePullRequests returns the merged or closed pull requests, in input order.
// Narrowing to the lookback window is the data source's job.
func SelectReportablePullRequests(prs []domain.PullRequest) []domain.PullRequest {
	reportable := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.IsMerged() || pr.ClosedAt != nil {
			reportable = append(reportable, pr)
		}
	}
	return reportable
}
