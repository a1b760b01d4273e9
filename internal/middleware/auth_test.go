package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "0x1111111111111111111111111111111111111111"

func authRouter(secret string) (*gin.Engine, *common.Address) {
	gin.SetMode(gin.TestMode)
	var seen common.Address
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/test", func(c *gin.Context) {
		wallet, ok := GetWalletAddress(c)
		if ok {
			seen = wallet
		}
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func signToken(t *testing.T, secret, wallet string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		WalletAddress: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestAuthMiddleware_LocalStageTrustsHeader(t *testing.T) {
	router, seen := authRouter("")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Wallet-Address", testWallet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.HexToAddress(testWallet), *seen)
}

func TestAuthMiddleware_LocalStageRejectsMissingHeader(t *testing.T) {
	router, _ := authRouter("")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	secret := "test-secret"
	router, seen := authRouter(secret)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, testWallet, time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.HexToAddress(testWallet), *seen)
}

func TestAuthMiddleware_RejectsInvalidTokens(t *testing.T) {
	secret := "test-secret"

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired token", token: signToken(t, secret, testWallet, time.Now().Add(-time.Hour))},
		{name: "wrong secret", token: signToken(t, "other-secret", testWallet, time.Now().Add(time.Hour))},
		{name: "no wallet claim", token: signToken(t, secret, "", time.Now().Add(time.Hour))},
		{name: "garbage", token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := authRouter(secret)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_MissingBearer(t *testing.T) {
	router, _ := authRouter("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
