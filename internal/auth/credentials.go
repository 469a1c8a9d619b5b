package auth

import (
	"net/http"
	"strings"
)

// Credentials is the header set a provider inspects. Cookies travel in it too.
type Credentials struct {
	Header http.Header
}

func FromRequest(r *http.Request) Credentials {
	return Credentials{Header: r.Header.Clone()}
}

// BearerCredentials builds a header set holding only the given bearer token.
func BearerCredentials(token string) Credentials {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return Credentials{Header: h}
}

func (c Credentials) Cookie(name string) string {
	if c.Header == nil || name == "" {
		return ""
	}
	cookie, err := (&http.Request{Header: c.Header}).Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c Credentials) Bearer() string {
	return extractBearer(c.Header.Get("Authorization"))
}

// BearerOnly strips everything but the bearer token. ok is false when there is
// no token, or when the credentials already hold nothing else.
func (c Credentials) BearerOnly() (Credentials, bool) {
	token := c.Bearer()
	if token == "" {
		return Credentials{}, false
	}
	if len(c.Header) == 1 {
		return Credentials{}, false
	}
	return BearerCredentials(token), true
}

func extractBearer(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
