package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer, audience, subject string, nbf, exp time.Time) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{audience}).
		IssuedAt(nbf).
		NotBefore(nbf).
		Expiration(exp)
	if subject != "" {
		b = b.Subject(subject)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	tok := buildToken(t, "https://id.cafe.test/", "cafe-api", "auth0|ada", now, now.Add(time.Minute))
	v := TokenValidator{Issuer: "https://id.cafe.test/", Audience: "cafe-api", ClockSkew: time.Second, Algorithms: []jwa.SignatureAlgorithm{jwa.RS256}}
	require.NoError(t, v.Validate(tok, jwa.RS256, now))
}

func TestTokenValidatorRejections(t *testing.T) {
	now := time.Now()
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithms: []jwa.SignatureAlgorithm{jwa.RS256}}
	cases := []struct {
		name string
		tok  jwt.Token
		alg  jwa.SignatureAlgorithm
	}{
		{"issuer", buildToken(t, "other", "aud", "sub", now, now.Add(time.Minute)), jwa.RS256},
		{"audience", buildToken(t, "issuer", "other", "sub", now, now.Add(time.Minute)), jwa.RS256},
		{"expired", buildToken(t, "issuer", "aud", "sub", now.Add(-2*time.Hour), now.Add(-time.Minute)), jwa.RS256},
		{"not yet valid", buildToken(t, "issuer", "aud", "sub", now.Add(5*time.Minute), now.Add(10*time.Minute)), jwa.RS256},
		{"no subject", buildToken(t, "issuer", "aud", "", now, now.Add(time.Minute)), jwa.RS256},
		{"algorithm", buildToken(t, "issuer", "aud", "sub", now, now.Add(time.Minute)), jwa.HS256},
		{"unsigned", buildToken(t, "issuer", "aud", "sub", now, now.Add(time.Minute)), jwa.NoSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, v.Validate(tc.tok, tc.alg, now))
		})
	}
}

func TestTokenValidatorClockSkew(t *testing.T) {
	now := time.Now()
	tok := buildToken(t, "issuer", "aud", "sub", now.Add(-time.Hour), now.Add(-10*time.Second))
	v := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: 30 * time.Second}
	require.NoError(t, v.Validate(tok, jwa.RS256, now))
}
