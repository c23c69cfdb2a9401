package edge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	jsonContentType = "application/json"
	statusOK        = "ok"
	// bytes of a rejected body kept for the error message
	snippetLimit = 512
)

// Entry is one acknowledgment unit returned by the edge for a purge call.
type Entry struct {
	Status string
	URL    string
	Extra  map[string]any
}

func (e Entry) OK() bool { return e.Status == statusOK }

// UnmarshalJSON keeps every field other than status and url in Extra.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("entry is null")
	}
	statusRaw, ok := raw["status"]
	if !ok {
		return errors.New("entry has no status")
	}
	if err := json.Unmarshal(statusRaw, &e.Status); err != nil {
		return fmt.Errorf("entry status: %w", err)
	}
	urlRaw, ok := raw["url"]
	if !ok {
		return errors.New("entry has no url")
	}
	if err := json.Unmarshal(urlRaw, &e.URL); err != nil {
		return fmt.Errorf("entry url: %w", err)
	}

	delete(raw, "status")
	delete(raw, "url")
	if len(raw) > 0 {
		e.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("entry field %s: %w", k, err)
			}
			e.Extra[k] = val
		}
	}
	return nil
}

// Validate checks resp against the purge acknowledgment contract and returns
// the decoded entries. It does not close the body.
//
// Status and content-type mismatches and undecodable bodies fail the whole
// response with no entries. Entries whose status is not "ok" are still
// returned alongside an *EntriesError listing each of them.
func Validate(resp *http.Response) ([]Entry, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Code: resp.StatusCode, Message: statusMessage(resp)}
	}
	if got := resp.Header.Get("Content-Type"); got != jsonContentType {
		return nil, &ContentTypeError{Got: got}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if entries == nil {
		return nil, &DecodeError{Err: errors.New("body is not a JSON array")}
	}

	var failed []*PurgeEntryError
	for _, e := range entries {
		if !e.OK() {
			failed = append(failed, &PurgeEntryError{URL: e.URL, Status: e.Status, Extra: e.Extra})
		}
	}
	if len(failed) > 0 {
		return entries, &EntriesError{Failed: failed}
	}
	return entries, nil
}

func statusMessage(resp *http.Response) string {
	msg := http.StatusText(resp.StatusCode)
	if resp.Body == nil {
		return msg
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	if s := strings.TrimSpace(string(bytes.ToValidUTF8(b, nil))); s != "" {
		msg += ": " + s
	}
	return msg
}
