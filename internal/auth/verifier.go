package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/cafe-api/internal/common"
)

// ErrInvalidToken is returned for tokens that fail parsing, signature or claim checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier turns a bearer token into a common.Identity.
type Verifier struct {
	keys      KeySource
	validator TokenValidator
	now       func() time.Time
}

// NewVerifier constructs a Verifier. RS256 is accepted when validator names no algorithms.
func NewVerifier(keys KeySource, validator TokenValidator) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("auth: key source is required")
	}
	if len(validator.Algorithms) == 0 {
		validator.Algorithms = []jwa.SignatureAlgorithm{jwa.RS256}
	}
	return &Verifier{keys: keys, validator: validator, now: time.Now}, nil
}

// WithNow overrides the clock used for lifetime checks.
func (v *Verifier) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Verify checks the signature against the provider keys, then validates claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (common.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Identity{}, ErrInvalidToken
	}
	algorithm, err := tokenAlgorithm(raw)
	if err != nil {
		return common.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	set, err := v.keys.Keys(ctx)
	if err != nil {
		return common.Identity{}, err
	}
	tok, err := jwt.ParseString(raw,
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(false),
	)
	if err != nil {
		return common.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := v.validator.Validate(tok, algorithm, v.now()); err != nil {
		return common.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return common.Identity{
		Subject: tok.Subject(),
		Email:   v.identityClaim(tok, "email"),
		Name:    v.identityClaim(tok, "name"),
	}, nil
}

// identityClaim reads a profile claim, falling back to the audience-namespaced
// form ("<audience>/email") that identity providers use for custom access token claims.
func (v *Verifier) identityClaim(tok jwt.Token, name string) string {
	if s := stringClaim(tok, name); s != "" {
		return s
	}
	ns := strings.TrimRight(strings.TrimSpace(v.validator.Audience), "/")
	if ns == "" {
		return ""
	}
	return stringClaim(tok, ns+"/"+name)
}

func tokenAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", fmt.Errorf("expected one signature, got %d", len(sigs))
	}
	return sigs[0].ProtectedHeaders().Algorithm(), nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
