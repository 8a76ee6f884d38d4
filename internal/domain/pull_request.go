package domain

import "time"

// PRStatus is the reportable status of a pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "open"
	PRStatusMerged PRStatus = "merged"
	PRStatusClosed PRStatus = "closed"
)

// PullRequest represents one pull request touched within the lookback window.
// A merged pull request always carries ClosedAt as well; the converse does not hold.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Labels    []Label    `json:"labels"`
	Assignees []Assignee `json:"assignees"`
}

// IsMerged reports whether the pull request has a merge timestamp.
func (p PullRequest) IsMerged() bool {
	return p.MergedAt != nil
}

// Status classifies the pull request. Merged takes precedence over closed.
func (p PullRequest) Status() PRStatus {
	switch {
	case p.IsMerged():
		return PRStatusMerged
	case p.ClosedAt != nil:
		return PRStatusClosed
	default:
		return PRStatusOpen
	}
}

// EventTime returns the merge time, or the close time for unmerged pull requests.
func (p PullRequest) EventTime() *time.Time {
	if p.MergedAt != nil {
		return p.MergedAt
	}
	return p.ClosedAt
}
