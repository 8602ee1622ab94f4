package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Local is an in-process provider for dev and tests. Accounts live in
// memory with bcrypt password hashes and tokens are HS256 JWTs signed with
// the same secret the hosted verifier uses, so the token gate does not care
// which provider issued them.
type Local struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]localUser // keyed by email
}

type localUser struct {
	uid          string
	email        string
	passwordHash string
}

func NewLocal(secret string, tokenTTL time.Duration) *Local {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}

	return &Local{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    make(map[string]localUser),
	}
}

func (l *Local) CreateUser(ctx context.Context, email, password string) (Claims, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return Claims{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, exists := l.users[email]

	if exists {
		return Claims{}, ErrEmailTaken
	}

	u := localUser{
		uid:          uuid.NewString(),
		email:        email,
		passwordHash: string(hash),
	}
	l.users[email] = u

	return Claims{UserID: u.uid, Email: u.email}, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (string, error) {
	l.mu.RLock()
	u, ok := l.users[email]
	l.mu.RUnlock()

	if !ok {
		return "", ErrInvalidCredentials
	}

	err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password))

	if err != nil {
		return "", ErrInvalidCredentials
	}

	return l.issueToken(u.uid, u.email)
}

func (l *Local) VerifyToken(ctx context.Context, token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &idTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC; anything else is a forged token
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return l.secret, nil
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

func (l *Local) issueToken(uid, email string) (string, error) {
	now := time.Now().UTC()

	claims := idTokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(l.secret)
}
