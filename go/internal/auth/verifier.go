package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the payload carried by a signed client token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// Verifier checks client-presented credential tokens. Token issuance lives
// in the account service; this side only validates signature and expiry.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// HMACVerifier validates HS256 tokens: three base64url segments, the last
// being an HMAC-SHA256 over "header.payload" with a shared secret.
type HMACVerifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewHMACVerifier(secret string, clock clockwork.Clock) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), clock: clock}
}

func (v *HMACVerifier) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	signed := parts[0] + "." + parts[1]
	want := v.sign(signed)
	got, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	if !hmac.Equal(want, got) {
		return nil, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedToken, err)
	}

	if claims.Expiry < v.clock.Now().Unix() {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (v *HMACVerifier) sign(data string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// Sign mints a token for the given claims. Used by local tooling and tests;
// production tokens come from the account service with the same secret.
func (v *HMACVerifier) Sign(claims Claims) (string, error) {
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signed := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	sig := base64.RawURLEncoding.EncodeToString(v.sign(signed))
	return signed + "." + sig, nil
}
