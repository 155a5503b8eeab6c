// Package notify delivers the end-of-run summary to the owner.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	SubjectPurchased = "Congratulations, you're the proud owner of a new domain name!"
	SubjectDefault   = "Notification"
)

type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Subject picks the summary subject line.
func Subject(purchased bool) string {
	if purchased {
		return SubjectPurchased
	}
	return SubjectDefault
}

// Body joins summary lines into one message.
func Body(lines []string) string {
	return strings.Join(lines, "\n")
}

// Multi sends to every notifier, even when an earlier one failed.
type Multi []Notifier

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

func (m Multi) Send(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
