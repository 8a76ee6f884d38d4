package domain

import (
	"fmt"
	"time"
)

// Notification kinds used as identifier prefixes in SentNotifications.
const (
	NotificationIssueAlert = "issue_alert"
	NotificationPRUpdate   = "pr_notification"
)

// NotificationID builds the identifier recorded for a successful send.
func NotificationID(kind string, at time.Time) string {
	return fmt.Sprintf("%s_%s", kind, at.Format(time.RFC3339Nano))
}

// MonitorState is the working state of one monitoring cycle together with
// the memory carried from one cycle to the next.
type MonitorState struct {
	// Identity and configuration, fixed for the cycle.
	Owner         string   `json:"owner"`
	Name          string   `json:"name"`
	ThresholdDays int      `json:"threshold_days"`
	Recipients    []string `json:"recipients"`

	// Per-cycle scratch. Empty outside of a running cycle.
	Issues          []Issue       `json:"-"`
	PullRequests    []PullRequest `json:"-"`
	AlertIssues     []Issue       `json:"-"`
	NotificationPRs []PullRequest `json:"-"`
	ShouldAlert     bool          `json:"-"`
	ShouldNotify    bool          `json:"-"`

	// Cross-cycle memory.
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`
	SentNotifications []string   `json:"sent_notifications"`
}

// FullName returns "owner/name".
func (s *MonitorState) FullName() string {
	return s.Owner + "/" + s.Name
}

// RepositoryURL returns the web URL of the monitored repository.
func (s *MonitorState) RepositoryURL() string {
	return "https://github.com/" + s.FullName()
}

// ResetScratch clears every per-cycle field.
func (s *MonitorState) ResetScratch() {
	s.Issues = nil
	s.PullRequests = nil
	s.AlertIssues = nil
	s.NotificationPRs = nil
	s.ShouldAlert = false
	s.ShouldNotify = false
}

// Clone returns a copy whose slices do not alias the receiver's.
func (s *MonitorState) Clone() *MonitorState {
	c := *s
	c.Recipients = append([]string(nil), s.Recipients...)
	c.Issues = append([]Issue(nil), s.Issues...)
	c.PullRequests = append([]PullRequest(nil), s.PullRequests...)
	c.AlertIssues = append([]Issue(nil), s.AlertIssues...)
	c.NotificationPRs = append([]PullRequest(nil), s.NotificationPRs...)
	c.SentNotifications = append([]string(nil), s.SentNotifications...)
	if s.LastNotifiedAt != nil {
		t := *s.LastNotifiedAt
		c.LastNotifiedAt = &t
	}
	return &c
}
