package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "novelhub", Duration: time.Hour}
}

func TestSignAndParse(t *testing.T) {
	ts := testTokens()
	tok, exp, err := ts.Sign("alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "alice", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	ts := testTokens()

	t.Run("wrong secret", func(t *testing.T) {
		other := ts
		other.Secret = []byte("other")
		tok, _, err := other.Sign("alice")
		require.NoError(t, err)
		_, err = ts.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := ts
		other.Issuer = "someone-else"
		tok, _, err := other.Sign("alice")
		require.NoError(t, err)
		_, err = ts.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		other := ts
		other.Duration = -time.Minute
		tok, _, err := other.Sign("alice")
		require.NoError(t, err)
		_, err = ts.Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing role", func(t *testing.T) {
		tok := signRole(t, ts, "reader")
		_, err := ts.Parse(tok)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func signRole(t *testing.T, ts TokenService, role string) string {
	t.Helper()
	claims := Claims{
		Operator: "bob",
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.Secret)
	require.NoError(t, err)
	return s
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := testTokens()

	r := gin.New()
	r.GET("/admin/ping", Middleware(ts), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFrom(c).Operator)
	})

	good, _, err := ts.Sign("alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + signRole(t, ts, "reader"), http.StatusForbidden},
		{"ok", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}
