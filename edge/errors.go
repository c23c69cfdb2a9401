package edge

import (
	"fmt"
	"sort"
	"strings"
)

// TransportError wraps a failure to send a request or read its response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is any response status other than 200.
type HTTPStatusError struct {
	Code    int
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

type ContentTypeError struct {
	Got string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content-type %q, want %q", e.Got, jsonContentType)
}

// DecodeError means the body was not a JSON array of acknowledgment objects.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode purge response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PurgeEntryError is one acknowledgment whose status is not "ok".
type PurgeEntryError struct {
	URL    string
	Status string
	Extra  map[string]any
}

func (e *PurgeEntryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "purge of %s reported status %q", e.URL, e.Status)
	if len(e.Extra) > 0 {
		keys := make([]string, 0, len(e.Extra))
		for k := range e.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Extra[k])
		}
	}
	return b.String()
}

// EntriesError collects the failed entries of a structurally valid response.
type EntriesError struct {
	Failed []*PurgeEntryError
}

func (e *EntriesError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *EntriesError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}
