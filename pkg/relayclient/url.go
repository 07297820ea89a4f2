package relayclient

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultPort is where the relay listens when the page does not say otherwise.
const DefaultPort = "8080"

// ResolveURL picks the relay socket URL. A non-empty override wins as is;
// otherwise the relay is assumed on the page's host at DefaultPort, over wss
// when the page is served over https and ws otherwise.
func ResolveURL(override, page string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	u, err := url.Parse(strings.TrimSpace(page))
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", page, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("page url %q has no host", page)
	}

	scheme := "ws"
	if strings.EqualFold(u.Scheme, "https") {
		scheme = "wss"
	}

	return (&url.URL{Scheme: scheme, Host: net.JoinHostPort(host, DefaultPort)}).String(), nil
}
