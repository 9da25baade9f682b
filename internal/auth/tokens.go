// Package auth issues and verifies the signed pilot tokens that name a websocket
// session. Tokens are compact HS256 JWTs scoped to the navigator audience.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Audience is the only audience pilot tokens are accepted for.
const Audience = "navigator"

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingToken is returned when a request carries no token at all.
	ErrMissingToken = errors.New("missing pilot token")
)

// PilotClaims is the verified payload of a pilot token.
type PilotClaims struct {
	PilotID   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type tokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type tokenPayload struct {
	Subject  string `json:"sub"`
	Expires  int64  `json:"exp"`
	Issued   int64  `json:"iat"`
	Audience string `json:"aud"`
}

// PilotTokens signs and verifies pilot tokens with one shared secret.
type PilotTokens struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewPilotTokens constructs a signer for the supplied secret and clock skew allowance.
func NewPilotTokens(secret string, leeway time.Duration) (*PilotTokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("pilot token secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &PilotTokens{secret: []byte(secret), now: time.Now, leeway: leeway}, nil
}

// WithClock overrides the token clock, enabling deterministic unit tests.
func (p *PilotTokens) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	p.now = clock
}

// Issue mints a token naming pilotID that expires after ttl.
func (p *PilotTokens) Issue(pilotID string, ttl time.Duration) (string, error) {
	if p == nil || len(p.secret) == 0 {
		return "", errors.New("pilot tokens not initialised")
	}
	pilotID = strings.TrimSpace(pilotID)
	if pilotID == "" || ttl <= 0 {
		return "", fmt.Errorf("%w: pilot id and ttl are required", ErrInvalidToken)
	}
	now := p.now()
	header, err := json.Marshal(tokenHeader{Algorithm: "HS256", Type: "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(tokenPayload{
		Subject:  pilotID,
		Expires:  now.Add(ttl).Unix(),
		Issued:   now.Unix(),
		Audience: Audience,
	})
	if err != nil {
		return "", err
	}
	signingInput := encodeSegment(header) + "." + encodeSegment(payload)
	return signingInput + "." + encodeSegment(p.sign([]byte(signingInput))), nil
}

// Verify parses the token and validates the signature, audience, and expiry.
func (p *PilotTokens) Verify(token string) (*PilotClaims, error) {
	if p == nil || len(p.secret) == 0 {
		return nil, errors.New("pilot tokens not initialised")
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}

	//1.- Check the algorithm before trusting the signature.
	var header tokenHeader
	if err := decodeJSONSegment(parts[0], &header); err != nil {
		return nil, ErrInvalidToken
	}
	if header.Algorithm != "HS256" {
		return nil, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidToken, header.Algorithm)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(signature, p.sign([]byte(parts[0]+"."+parts[1]))) {
		return nil, ErrInvalidToken
	}

	//2.- Only then read the claims.
	var payload tokenPayload
	if err := decodeJSONSegment(parts[1], &payload); err != nil {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(payload.Subject) == "" || payload.Expires <= 0 {
		return nil, ErrInvalidToken
	}
	if payload.Audience != Audience {
		return nil, fmt.Errorf("%w: audience %q", ErrInvalidToken, payload.Audience)
	}
	expiresAt := time.Unix(payload.Expires, 0)
	if expiresAt.Add(p.leeway).Before(p.now()) {
		return nil, ErrExpiredToken
	}
	return &PilotClaims{
		PilotID:   payload.Subject,
		ExpiresAt: expiresAt,
		IssuedAt:  time.Unix(payload.Issued, 0),
	}, nil
}

// Authenticate reads the token from the auth_token query parameter or the X-Auth-Token
// header and returns the pilot id it names.
func (p *PilotTokens) Authenticate(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return "", ErrMissingToken
	}
	claims, err := p.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.PilotID, nil
}

func (p *PilotTokens) sign(input []byte) []byte {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(input)
	return mac.Sum(nil)
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeJSONSegment(segment string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
