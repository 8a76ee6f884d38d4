// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"errors"
	"time"
)

// ErrInvalidRepository is returned when an owner/name pair cannot identify a repository.
var ErrInvalidRepository = errors.New("invalid repository identity")

// Label is a repository label attached to an issue or pull request.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Assignee is a user assigned to an issue or pull request.
type Assignee struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Issue represents one open issue at fetch time.
// Age is deliberately not stored; use AgeDays with the evaluation time.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	URL       string     `json:"url"`
	Labels    []Label    `json:"labels"`
	Assignees []Assignee `json:"assignees"`
}

// AgeDays returns the number of whole days between the issue's creation and now.
func (i Issue) AgeDays(now time.Time) int {
	d := now.Sub(i.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// RepositorySummary is the repository metadata shown on the dashboard.
type RepositorySummary struct {
	FullName       string `json:"full_name"`
	Description    string `json:"description"`
	OpenIssueCount int    `json:"open_issue_count"`
	StarCount      int    `json:"star_count"`
	ForkCount      int    `json:"fork_count"`
	URL            string `json:"url"`
}

// ValidateRepository checks that owner and name are usable as a repository identity.
func ValidateRepository(owner, name string) error {
	if owner == "" || name == "" {
		return ErrInvalidRepository
	}
	return nil
}
