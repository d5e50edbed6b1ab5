package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/octobees/contact-enricher/internal/auth"
	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/dto"
)

// ErrInvalidCredentials is returned for unknown clients and wrong secrets alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService exchanges client credentials for bearer tokens.
type AuthService struct {
	clients config.APIClients
	jwt     *auth.JWTManager
	ttl     int64
}

// NewAuthService constructs a new AuthService.
func NewAuthService(clients config.APIClients, jwtManager *auth.JWTManager, ttlSeconds int64) *AuthService {
	return &AuthService{clients: clients, jwt: jwtManager, ttl: ttlSeconds}
}

// IssueToken validates the client secret and returns a signed token.
func (s *AuthService) IssueToken(_ context.Context, clientID, secret string) (dto.TokenResponse, error) {
	if clientID == "" || secret == "" {
		return dto.TokenResponse{}, errors.New("client_id and client_secret must not be empty")
	}

	client, ok := s.clients.Find(clientID)
	if !ok {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(client.ID, client.Role)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	return dto.TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: s.ttl}, nil
}
