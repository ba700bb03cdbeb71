package goToken

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// RequestSource exposes the request context a token is bound to: the host
// that serves it, when it started, and the CGI-style server variables and
// peer address used to resolve the client IP.
type RequestSource interface {
	Host() string
	// StartTime returns the zero time when unknown.
	StartTime() time.Time
	// Var returns a server variable such as HTTP_CLIENT_IP, or "".
	Var(name string) string
	RemoteAddr() string
}

// HTTPRequest adapts an *http.Request.
//
// HTTP_* variables map to request headers (HTTP_X_FORWARDED_FOR reads
// X-Forwarded-For). REMOTE_ADDR as a variable is unset; the connection
// address is served by RemoteAddr with the port stripped. The start time
// comes from [WithRequestTime] on the request context.
func HTTPRequest(r *http.Request) RequestSource {
	return httpRequest{r: r}
}

type httpRequest struct {
	r *http.Request
}

func (h httpRequest) Host() string {
	if h.r == nil {
		return ""
	}
	return h.r.Host
}

func (h httpRequest) StartTime() time.Time {
	if h.r == nil {
		return time.Time{}
	}
	return RequestTimeFromContext(h.r.Context())
}

func (h httpRequest) Var(name string) string {
	if h.r == nil {
		return ""
	}
	header, ok := strings.CutPrefix(name, "HTTP_")
	if !ok || header == "" {
		return ""
	}
	return h.r.Header.Get(strings.ReplaceAll(header, "_", "-"))
}

func (h httpRequest) RemoteAddr() string {
	if h.r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(h.r.RemoteAddr)
	if err != nil {
		return h.r.RemoteAddr
	}
	return host
}

// EnvRequest reads a CGI environment through lookup: HTTP_HOST for the host,
// REQUEST_TIME (unix seconds) for the start time, and every variable
// verbatim. A nil lookup reads the process environment.
func EnvRequest(lookup func(string) string) RequestSource {
	if lookup == nil {
		lookup = os.Getenv
	}
	return envRequest{lookup: lookup}
}

type envRequest struct {
	lookup func(string) string
}

func (e envRequest) Host() string {
	return e.lookup("HTTP_HOST")
}

func (e envRequest) StartTime() time.Time {
	raw := strings.TrimSpace(e.lookup("REQUEST_TIME"))
	if raw == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func (e envRequest) Var(name string) string {
	return e.lookup(name)
}

// RemoteAddr is empty: a CGI environment has no separate connection record.
func (e envRequest) RemoteAddr() string {
	return ""
}

// StaticRequest is a fixed request context for tests, workers and other
// callers without a transport.
type StaticRequest struct {
	HostName string
	Started  time.Time
	Vars     map[string]string
	Peer     string
}

func (s StaticRequest) Host() string         { return s.HostName }
func (s StaticRequest) StartTime() time.Time { return s.Started }
func (s StaticRequest) Var(name string) string {
	return s.Vars[name]
}
func (s StaticRequest) RemoteAddr() string { return s.Peer }
