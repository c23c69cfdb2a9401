package scm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBranch is used when the event carries no ref.
const DefaultBranch = "master"

// Event is the part of a push event payload the purge needs.
type Event struct {
	Before  string
	After   string
	Compare string
	Ref     string
}

// EventFromPayload picks the push fields out of a decoded event payload.
func EventFromPayload(payload map[string]any) Event {
	str := func(k string) string {
		s, _ := payload[k].(string)
		return strings.TrimSpace(s)
	}
	return Event{
		Before:  str("before"),
		After:   str("after"),
		Compare: str("compare"),
		Ref:     str("ref"),
	}
}

// Repository returns owner and repo from the compare URL, whose path starts
// with /{owner}/{repo}/compare/...
func (e Event) Repository() (owner, repo string, err error) {
	if e.Compare == "" {
		return "", "", errors.New("event has no compare url")
	}
	u, err := url.Parse(e.Compare)
	if err != nil {
		return "", "", fmt.Errorf("parse compare url: %w", err)
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("compare url %q has no owner/repo", e.Compare)
	}
	return parts[0], parts[1], nil
}

// Branch is the last segment of the ref, or fallback when the ref is empty.
func (e Event) Branch(fallback string) string {
	if fallback == "" {
		fallback = DefaultBranch
	}
	ref := strings.TrimSpace(e.Ref)
	if ref == "" {
		return fallback
	}
	parts := strings.Split(ref, "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return fallback
}
