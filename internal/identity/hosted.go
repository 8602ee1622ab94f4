package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Hosted talks to the managed identity service over its REST API for account
// creation and sign-in. Token verification does not go over the network: ID
// tokens are JWTs and are validated locally against the shared secret, the
// same way the service's own admin SDKs do it.
type Hosted struct {
	authDomain string
	apiKey     string
	secret     []byte
	client     *http.Client
}

func NewHosted(authDomain, apiKey, secret string) *Hosted {
	return &Hosted{
		authDomain: authDomain,
		apiKey:     apiKey,
		secret:     []byte(secret),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type accountRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Hosted) CreateUser(ctx context.Context, email, password string) (Claims, error) {
	resp, err := h.post(ctx, "accounts:signUp", accountRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})

	if err != nil {
		return Claims{}, err
	}

	return Claims{UserID: resp.LocalID, Email: resp.Email}, nil
}

func (h *Hosted) SignIn(ctx context.Context, email, password string) (string, error) {
	resp, err := h.post(ctx, "accounts:signInWithPassword", accountRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})

	if err != nil {
		return "", err
	}

	return resp.IDToken, nil
}

type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (h *Hosted) VerifyToken(ctx context.Context, token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &idTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC; anything else is a forged token
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.secret, nil
	})

	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*idTokenClaims)

	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{UserID: claims.Subject, Email: claims.Email}, nil
}

func (h *Hosted) post(ctx context.Context, op string, body accountRequest) (accountResponse, error) {
	var out accountResponse

	payload, err := json.Marshal(body)

	if err != nil {
		return out, err
	}

	url := fmt.Sprintf("https://%s/v1/%s?key=%s", h.authDomain, op, h.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))

	if err != nil {
		return out, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)

	if err != nil {
		return out, err
	}

	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&out)

	if err != nil {
		return accountResponse{}, err
	}

	if out.Error != nil {
		return accountResponse{}, mapAccountError(out.Error.Message)
	}

	if resp.StatusCode >= 400 {
		return accountResponse{}, fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	return out, nil
}

func mapAccountError(message string) error {
	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return ErrEmailTaken
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"):
		return ErrInvalidCredentials
	default:
		return errors.New("identity service error: " + message)
	}
}
