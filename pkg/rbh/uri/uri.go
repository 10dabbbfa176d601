// Package uri implements the RFC 3986 generic-syntax split used to
// address backends: scheme, authority (userinfo, host, port), path,
// query and fragment.
//
// The parser only splits; percent escapes are passed through untouched
// and re-encoding is the caller's responsibility. An empty authority
// ("scheme:///path") is distinguished from an absent one ("scheme:/path").
package uri

import (
	"fmt"
	"strings"
)

// URI holds the components of a parsed URI. String fields are raw
// substrings of the input; presence flags distinguish empty components
// from absent ones where RFC 3986 makes the distinction observable.
type URI struct {
	Scheme   string
	Userinfo string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string

	// HasAuthority is true when the "//" marker was present, even for an
	// empty authority.
	HasAuthority bool

	// HasUserinfo / HasPort / HasQuery / HasFragment record whether the
	// respective separator was present with an empty component.
	HasUserinfo bool
	HasPort     bool
	HasQuery    bool
	HasFragment bool
}

// Parse splits raw into its RFC 3986 components.
//
// The scheme is mandatory: it must start with a letter, contain only
// [A-Za-z0-9+-.], and be terminated by ':'. Anything else fails.
func Parse(raw string) (*URI, error) {
	scheme, rest, err := splitScheme(raw)
	if err != nil {
		return nil, err
	}

	u := &URI{Scheme: scheme}

	if strings.HasPrefix(rest, "//") {
		u.HasAuthority = true
		authority := rest[2:]
		if end := strings.IndexAny(authority, "/?#"); end >= 0 {
			rest = authority[end:]
			authority = authority[:end]
		} else {
			rest = ""
		}
		parseAuthority(authority, u)
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		u.Fragment = rest[i+1:]
		u.HasFragment = true
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		u.Query = rest[i+1:]
		u.HasQuery = true
		rest = rest[:i]
	}
	u.Path = rest

	return u, nil
}

// splitScheme extracts and validates the scheme.
func splitScheme(raw string) (scheme, rest string, err error) {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
			// always valid
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return "", "", &ParseError{Input: raw, Reason: "scheme must start with a letter"}
			}
		case c == ':':
			if i == 0 {
				return "", "", &ParseError{Input: raw, Reason: "empty scheme"}
			}
			return raw[:i], raw[i+1:], nil
		default:
			return "", "", &ParseError{Input: raw, Reason: "invalid character in scheme"}
		}
	}
	return "", "", &ParseError{Input: raw, Reason: "missing ':' after scheme"}
}

// parseAuthority splits [userinfo@]host[:port].
func parseAuthority(authority string, u *URI) {
	if i := strings.IndexByte(authority, '@'); i >= 0 {
		u.Userinfo = authority[:i]
		u.HasUserinfo = true
		authority = authority[i+1:]
	}
	// The port separator is the last ':' so IPv6 literals in brackets
	// keep their colons.
	if i := strings.LastIndexByte(authority, ':'); i >= 0 && strings.IndexByte(authority[i:], ']') < 0 {
		u.Host = authority[:i]
		u.Port = authority[i+1:]
		u.HasPort = true
		return
	}
	u.Host = authority
}

// String reassembles the URI with the separators RFC 3986 prescribes.
// Parsing the result yields a URI equal to the receiver.
func (u *URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteByte(':')
	if u.HasAuthority {
		b.WriteString("//")
		if u.HasUserinfo || u.Userinfo != "" {
			b.WriteString(u.Userinfo)
			b.WriteByte('@')
		}
		b.WriteString(u.Host)
		if u.HasPort || u.Port != "" {
			b.WriteByte(':')
			b.WriteString(u.Port)
		}
	}
	b.WriteString(u.Path)
	if u.HasQuery || u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.HasFragment || u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// ParseError describes a malformed URI.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid URI %q: %s", e.Input, e.Reason)
}
