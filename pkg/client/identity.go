package client

import (
	"net/http"
	"strings"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0"

const (
	FanboxOrigin  = "https://www.fanbox.cc"
	PatreonOrigin = "https://www.patreon.com"
)

// Identity is the fixed set of headers attached to every request
type Identity struct {
	Cookie    string
	Origin    string
	UserAgent string
}

// FanboxIdentity builds the identity for a FANBOXSESSID session
func FanboxIdentity(session, userAgent string) Identity {
	return Identity{
		Cookie:    withPrefix(session, "FANBOXSESSID="),
		Origin:    FanboxOrigin,
		UserAgent: userAgent,
	}
}

// PatreonIdentity builds the identity for a Patreon session_id cookie
func PatreonIdentity(session, userAgent string) Identity {
	return Identity{
		Cookie:    withPrefix(session, "session_id="),
		Origin:    PatreonOrigin,
		UserAgent: userAgent,
	}
}

func withPrefix(session, prefix string) string {
	session = strings.TrimSpace(session)
	if session == "" || strings.HasPrefix(session, prefix) {
		return session
	}
	return prefix + session
}

func (id Identity) apply(req *http.Request) {
	if id.Cookie != "" {
		req.Header.Set("Cookie", id.Cookie)
	}
	if id.Origin != "" {
		req.Header.Set("Origin", id.Origin)
	}
	ua := id.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
}
