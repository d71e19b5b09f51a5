package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaspidesk/stocks_backend/middlewares"
	"github.com/kaspidesk/stocks_backend/utils"
)

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares.AuthMiddleware())
	r.POST("/internal", middlewares.RequireAuth(), func(c *gin.Context) {
		claim := middlewares.CtxValue(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"sub": claim.Subject})
	})
	return r
}

func TestRequireAuth_AcceptsGeneratedToken(t *testing.T) {
	r := protectedRouter()

	token, err := utils.JwtGenerate("pubsub-push", time.Hour)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/internal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireAuth_RejectsMissingAndBadTokens(t *testing.T) {
	r := protectedRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Token abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, w.Code)
		}
	}
}

func TestRequireAuth_RejectsExpiredToken(t *testing.T) {
	r := protectedRouter()

	token, err := utils.JwtGenerate("pubsub-push", -time.Minute)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/internal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}
