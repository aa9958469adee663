// Package connstring parses decode-cli's connection strings, adapted from
// this codebase's pkg/core/connstring.go URI-style parser for a single
// decoder HTTP endpoint instead of a multi-host index cluster.
package connstring

import (
	"fmt"
	"net/url"
	"strings"
)

// ConnInfo holds parsed connection string components for
// decode://[user:password@]host[:port][/sessionID].
type ConnInfo struct {
	Scheme    string
	User      string
	Password  string
	Host      string
	SessionID string
	TLS       bool
}

// Parse parses a decode-cli connection string:
//
//	decode://[user:password@]host[:port][/sessionID]
//	decode+tls://[user:password@]host[:port][/sessionID]
func Parse(raw string) (*ConnInfo, error) {
	if raw == "" {
		return nil, fmt.Errorf("connection string must not be empty")
	}

	if !strings.HasPrefix(raw, "decode://") && !strings.HasPrefix(raw, "decode+tls://") {
		return nil, fmt.Errorf("connection string must start with decode:// or decode+tls://, got: %s", raw)
	}

	info := &ConnInfo{}
	if strings.HasPrefix(raw, "decode+tls://") {
		info.Scheme = "decode+tls"
		info.TLS = true
	} else {
		info.Scheme = "decode"
	}

	normalized := strings.Replace(raw, info.Scheme+"://", "http://", 1)
	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsed.User != nil {
		info.User = parsed.User.Username()
		info.Password, _ = parsed.User.Password()
	}

	host := parsed.Host
	if host == "" {
		return nil, fmt.Errorf("connection string must contain a host")
	}
	if !strings.Contains(host, ":") {
		host += ":7070"
	}
	info.Host = host

	if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
		info.SessionID = path
	}

	return info, nil
}

// String reconstructs the connection string (password masked).
func (c *ConnInfo) String() string {
	var sb strings.Builder
	sb.WriteString(c.Scheme)
	sb.WriteString("://")
	if c.User != "" {
		sb.WriteString(c.User)
		if c.Password != "" {
			sb.WriteString(":***")
		}
		sb.WriteByte('@')
	}
	sb.WriteString(c.Host)
	if c.SessionID != "" {
		sb.WriteByte('/')
		sb.WriteString(c.SessionID)
	}
	return sb.String()
}

// BaseURL returns the HTTP(S) base URL for this connection.
func (c *ConnInfo) BaseURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Host)
}
