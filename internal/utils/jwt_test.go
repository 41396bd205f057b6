package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "a@b.io", "ADMIN", 5)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 5*time.Second)

    id, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, Identity{UserID: 42, Email: "a@b.io", Role: "ADMIN"}, id)
}

func TestParseAccessTokenRejects(t *testing.T) {
    good, err := NewAccessToken("s3cret", 1, "", "USER", 5)
    require.NoError(t, err)
    expired, err := NewAccessToken("s3cret", 1, "", "USER", -1)
    require.NoError(t, err)

    none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
        "sub": "1", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix(),
    }).SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)

    badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "abc", "role": "USER", "exp": time.Now().Add(time.Hour).Unix(),
    }).SignedString([]byte("s3cret"))
    require.NoError(t, err)

    noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "1", "role": "USER",
    }).SignedString([]byte("s3cret"))
    require.NoError(t, err)

    cases := map[string]struct{ secret, raw string }{
        "wrong secret": {"other", good.Token},
        "expired":      {"s3cret", expired.Token},
        "alg none":     {"s3cret", none},
        "bad subject":  {"s3cret", badSub},
        "no expiry":    {"s3cret", noExp},
        "garbage":      {"s3cret", "not.a.jwt"},
    }
    for name, c := range cases {
        t.Run(name, func(t *testing.T) {
            _, err := ParseAccessToken(c.secret, c.raw)
            assert.ErrorIs(t, err, ErrInvalidToken)
        })
    }
}

func TestRefreshToken(t *testing.T) {
    a, err := NewRefreshToken(7)
    require.NoError(t, err)
    b, err := NewRefreshToken(7)
    require.NoError(t, err)

    assert.Len(t, a.Raw, 96)
    assert.NotEqual(t, a.Raw, b.Raw)
    assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), a.Exp, 5*time.Second)

    assert.Len(t, HashRefreshRaw(a.Raw), 64)
    assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
    assert.NotEqual(t, HashRefreshRaw(a.Raw), HashRefreshRaw(b.Raw))
}
