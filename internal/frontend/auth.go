package frontend

import (
	"net/http"
	"strings"

	"github.com/browsercore/browsercore/internal/auth"
)

// principalFromRequest resolves the caller's auth.Context from request
// headers. A production deployment would validate a bearer token here and
// derive these fields from its claims; this reference adapter trusts the
// headers directly so the core's permission model can be exercised without
// standing up a token issuer.
func principalFromRequest(r *http.Request) auth.Context {
	return auth.Context{
		UserID:    r.Header.Get("X-User-Id"),
		Roles:     splitCSV(r.Header.Get("X-Roles")),
		Scopes:    splitCSV(r.Header.Get("X-Scopes")),
		SessionID: r.Header.Get("X-Session-Id"),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
