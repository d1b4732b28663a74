package middleware

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

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGenerateAndValidateToken(t *testing.T) {
	Configure("unit-test-secret", time.Hour)

	tok, err := GenerateToken(42, "driver")
	require.NoError(t, err)

	claims, err := ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "driver", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateToken_Rejects(t *testing.T) {
	Configure("unit-test-secret", time.Hour)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1, Role: "admin"})
	wrongSecret, err := foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 1, Role: "admin"})
	wrongAlg, err := hs512.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	expiredTok, err := expired.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"})
	noUserTok, err := noUser.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": wrongSecret,
		"wrong alg":    wrongAlg,
		"expired":      expiredTok,
		"no user":      noUserTok,
	} {
		_, err := ValidateToken(tok)
		assert.Error(t, err, name)
	}
}

func TestRequireAuthWithRole(t *testing.T) {
	Configure("unit-test-secret", time.Hour)
	adminTok, err := GenerateToken(7, "admin")
	require.NoError(t, err)
	driverTok, err := GenerateToken(8, "driver")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", RequireAuthWithRole("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token " + adminTok, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + driverTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
			}
		})
	}
}

func TestRequireAuthWithRole_HandlerSkippedForWrongRole(t *testing.T) {
	Configure("unit-test-secret", time.Hour)
	driverTok, err := GenerateToken(8, "driver")
	require.NoError(t, err)

	ran := false
	r := gin.New()
	r.DELETE("/admin/admins/:id", RequireAuthWithRole("admin"), func(c *gin.Context) {
		ran = true
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/admins/1", nil)
	req.Header.Set("Authorization", "Bearer "+driverTok)
	r.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient permissions"}`, w.Body.String())
}

func TestRequireAuth(t *testing.T) {
	Configure("unit-test-secret", time.Hour)
	tok, err := GenerateToken(9, "driver")
	require.NoError(t, err)

	calls := 0
	r := gin.New()
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c), "role": c.GetString("role")})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":9,"role":"driver"}`, w.Body.String())
	assert.Equal(t, 1, calls)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, calls)
}
