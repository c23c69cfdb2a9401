package edge

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInsecureBase is returned by ParseBase for anything but an https URL.
var ErrInsecureBase = errors.New("edge base url must use https")

// ParseBase checks that raw is an absolute https URL with a host.
func ParseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse edge base url %q: %w", raw, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: got %q", ErrInsecureBase, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("edge base url %q has no host", raw)
	}
	return u, nil
}

// JoinURLPath appends rel to the path of base and returns origin+path.
// Segments are joined like path.Join, except that a trailing slash on rel
// survives. The result is percent-escaped, so '#', '?' and '%' in rel stay
// part of the path. Query and fragment of base are dropped. base is assumed
// to have passed ParseBase already.
func JoinURLPath(base, rel string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	joined := path.Join("/", u.Path, rel)
	if strings.HasSuffix(rel, "/") && joined != "/" {
		joined += "/"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: joined}).String()
}

// DeriveHelixURL builds the preview origin for a branch of owner/repo.
func DeriveHelixURL(branch, repo, owner string) string {
	return fmt.Sprintf("https://%s--%s--%s.hlx.page", branch, repo, owner)
}
