package main

import (
	"net/http"
	"time"

	"starfolio/navigator/internal/auth"
)

// tokenLeeway tolerates clock skew between the token issuer and this host.
const tokenLeeway = 2 * time.Second

type websocketAuthenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// allowAllAuthenticator admits anonymous pilots; the host mints their ids.
type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) {
	return "", nil
}

// newPilotTokens returns nil when no secret is configured, which leaves both transports
// open to anonymous pilots.
func newPilotTokens(secret string) (*auth.PilotTokens, error) {
	if secret == "" {
		return nil, nil
	}
	return auth.NewPilotTokens(secret, tokenLeeway)
}

// websocketAuthenticatorFor requires a signed token on /ws when tokens are configured.
func websocketAuthenticatorFor(tokens *auth.PilotTokens) websocketAuthenticator {
	if tokens == nil {
		return allowAllAuthenticator{}
	}
	return tokens
}
