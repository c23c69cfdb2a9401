package app

import (
	"context"
	"fmt"
	"strings"

	"HlxPurge/telegram"
)

// at most this many failures are listed in one notification
const notifyMaxLines = 50

type NotifierService struct {
	Sender telegram.Sender
}

// NotifyFailures sends one summary of a failed run. No failures, no message.
func (n *NotifierService) NotifyFailures(ctx context.Context, subject string, failures []FailureRecord) error {
	if n.Sender == nil {
		return ErrMissingDependencies
	}
	if len(failures) == 0 {
		return nil
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "[cache purge failed] %s\n", subject)
	fmt.Fprintf(&builder, "%d failure(s):\n\n", len(failures))
	for i, f := range failures {
		if i == notifyMaxLines {
			fmt.Fprintf(&builder, "... and %d more\n", len(failures)-notifyMaxLines)
			break
		}
		fmt.Fprintf(&builder, "- %s\n", f.Error())
	}

	return n.Sender.Send(ctx, builder.String())
}
