package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeDialer struct {
	err   error
	calls int
}

func (f *fakeDialer) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.calls += len(messages)
	return f.err
}

func newTestSMTPSink(d *fakeDialer) *SMTPSink {
	sink := NewSMTPSink(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com"}, log.New(io.Discard, "", 0))
	sink.dial = func(SMTPConfig) (dialer, error) { return d, nil }
	return sink
}

func TestSMTPSink_Send(t *testing.T) {
	testCases := []struct {
		name        string
		recipients  []string
		dialErr     error
		expectOK    bool
		expectErr   error
		expectCalls int
	}{
		{name: "delivered", recipients: []string{"team@example.com"}, expectOK: true, expectCalls: 1},
		{name: "delivery failure is not an error", recipients: []string{"team@example.com"}, dialErr: errors.New("auth failed"), expectOK: false, expectCalls: 1},
		{name: "empty recipient list fails fast", recipients: nil, expectErr: ErrNoRecipients},
		{name: "malformed recipient is reported as failure", recipients: []string{"not an address"}, expectOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDialer{err: tc.dialErr}
			ok, err := newTestSMTPSink(d).Send(context.Background(), tc.recipients, "subject", "<p>body</p>")
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				assert.Zero(t, d.calls)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectOK, ok)
			assert.Equal(t, tc.expectCalls, d.calls)
		})
	}
}

func TestDryRunSink_Send(t *testing.T) {
	sink := NewDryRunSink(log.New(io.Discard, "", 0))

	ok, err := sink.Send(context.Background(), []string{"a@example.com"}, "s", "b")
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = sink.Send(context.Background(), []string{}, "s", "b")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestComposeIssueAlert(t *testing.T) {
	issues := []domain.Issue{{
		Number:    42,
		Title:     "Crash on <start>",
		URL:       "https://github.com/octo/repo/issues/42",
		CreatedAt: now.Add(-10 * 24 * time.Hour),
		UpdatedAt: now.Add(-24 * time.Hour),
		Labels:    []domain.Label{{Name: "bug", Color: "d73a4a"}},
		Assignees: []domain.Assignee{{Login: "alice"}, {Login: "bob"}},
	}}

	subject, body, err := ComposeIssueAlert("repo", "https://github.com/octo/repo", 7, issues, now)
	require.NoError(t, err)
	assert.Equal(t, "[ALERT] Issues Open Beyond 7 Days - repo", subject)
	assert.Contains(t, body, "#42 - Crash on &lt;start&gt;")
	assert.Contains(t, body, "<strong>Age:</strong> 10 days")
	assert.Contains(t, body, "alice, bob")
	assert.Contains(t, body, "https://github.com/octo/repo/issues/42")
}

func TestComposePRNotification(t *testing.T) {
	merged := now.Add(-2 * time.Hour)
	closed := now.Add(-1 * time.Hour)
	prs := []domain.PullRequest{
		{Number: 1, Title: "Add feature", URL: "u1", MergedAt: &merged, ClosedAt: &merged},
		{Number: 2, Title: "Abandoned", URL: "u2", ClosedAt: &closed},
	}

	subject, body, err := ComposePRNotification("repo", "https://github.com/octo/repo", prs, now)
	require.NoError(t, err)
	assert.Equal(t, "[UPDATE] Pull Requests Merged - repo", subject)
	assert.Contains(t, body, "<strong>Status:</strong> merged")
	assert.Contains(t, body, "<strong>Status:</strong> closed")
	assert.Contains(t, body, "<strong>Merged:</strong> 2025-06-01 10:00")
	assert.Contains(t, body, "<strong>Closed:</strong> 2025-06-01 11:00")
}
