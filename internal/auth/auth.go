package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherly/gatherly/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// Service resolves credentials to identities: it hashes passwords into the
// user store and issues/verifies the bearer tokens the HTTP and websocket
// handshakes carry.
type Service struct {
	storage storage.Storage
	secret  []byte
	ttl     time.Duration
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func New(config Config, storage storage.Storage) *Service {
	ttl := config.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Service{storage: storage, secret: []byte(config.Secret), ttl: ttl}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (storage.User, error) {
	if name == "" || email == "" || password == "" {
		return storage.User{}, fmt.Errorf("name, email and password are required: %w", storage.ErrEmptyField)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u := storage.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.storage.AddUser(ctx, &u); err != nil {
		return storage.User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, storage.User, error) {
	u, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFoundUser) {
			return "", storage.User{}, ErrInvalidCredentials
		}
		return "", storage.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", storage.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", storage.User{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, u, nil
}

// VerifyToken returns the user id a bearer token was issued for.
func (s *Service) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

type ctxKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID extracts the authenticated user id placed by the auth middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
