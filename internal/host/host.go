// Package host talks to the automation platform running the purge: it reads
// the action inputs and event, and reports the run's result back.
package host

import (
	"fmt"
	"strconv"

	"github.com/sethvargo/go-githubactions"
)

// Reporter is the host failure-reporting channel.
type Reporter interface {
	Infof(format string, args ...any)
	// Failed marks the run failed with msg. It does not exit.
	Failed(msg string)
	Summary(cleared, failed int)
}

// Actions reports through GitHub Actions workflow commands.
type Actions struct {
	action *githubactions.Action
}

func NewActions(action *githubactions.Action) *Actions {
	if action == nil {
		action = githubactions.New()
	}
	return &Actions{action: action}
}

func (a *Actions) Action() *githubactions.Action { return a.action }

func (a *Actions) Infof(format string, args ...any) {
	a.action.Infof(format, args...)
}

func (a *Actions) Failed(msg string) {
	a.action.Errorf("%s", msg)
}

// Summary publishes the counters as step outputs.
func (a *Actions) Summary(cleared, failed int) {
	a.action.SetOutput("cleared", strconv.Itoa(cleared))
	a.action.SetOutput("failed", strconv.Itoa(failed))
	a.action.Infof("purge finished: cleared=%d failed=%d", cleared, failed)
}

// Event returns the decoded event payload, or nil outside a workflow.
func Event(action *githubactions.Action) (map[string]any, error) {
	ctx, err := action.Context()
	if err != nil {
		return nil, fmt.Errorf("read github context: %w", err)
	}
	return ctx.Event, nil
}
