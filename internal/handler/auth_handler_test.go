package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/octobees/contact-enricher/internal/auth"
	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/service"
)

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	clients := config.APIClients{{ID: "orchestrator", Role: auth.RoleService, SecretHash: string(hashed)}}
	return NewAuthHandler(service.NewAuthService(clients, auth.NewJWTManager("test-secret", time.Hour), 3600))
}

func TestAuthHandler_Token(t *testing.T) {
	e := echo.New()
	handler := newAuthHandler(t)

	cases := map[string]struct {
		body   string
		status int
	}{
		"invalid payload": {body: "{", status: http.StatusBadRequest},
		"missing secret":  {body: `{"client_id":"orchestrator"}`, status: http.StatusBadRequest},
		"wrong secret":    {body: `{"client_id":"orchestrator","client_secret":"nope"}`, status: http.StatusUnauthorized},
		"success":         {body: `{"client_id":" orchestrator ","client_secret":"s3cret"}`, status: http.StatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := handler.Token(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}

			var payload struct {
				Data struct {
					AccessToken string `json:"access_token"`
					TokenType   string `json:"token_type"`
				} `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Data.AccessToken == "" || payload.Data.TokenType != "Bearer" {
				t.Fatalf("unexpected token payload: %s", rec.Body.String())
			}
		})
	}
}
