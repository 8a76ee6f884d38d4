// Package notify delivers monitoring notifications and composes their content.
package notify

import (
	"context"
	"errors"
	"log"
)

// ErrNoRecipients is returned before any delivery attempt when the recipient list is empty.
var ErrNoRecipients = errors.New("no notification recipients")

// Sink delivers one notification. Ordinary delivery failures (auth, network)
// are reported as false with a nil error; only misuse returns an error.
type Sink interface {
	Send(ctx context.Context, recipients []string, subject, body string) (bool, error)
}

// DryRunSink logs what would have been sent and always reports success.
type DryRunSink struct {
	logger *log.Logger
}

// NewDryRunSink creates a DryRunSink.
func NewDryRunSink(logger *log.Logger) *DryRunSink {
	return &DryRunSink{logger: logger}
}

func (s *DryRunSink) Send(_ context.Context, recipients []string, subject, body string) (bool, error) {
	if len(recipients) == 0 {
		return false, ErrNoRecipients
	}
	s.logger.Printf("[dry-run] would send %q to %d recipient(s) (%d bytes)", subject, len(recipients), len(body))
	return true, nil
}
