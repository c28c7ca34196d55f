// Package auth is the local identity provider: it registers users with
// bcrypt password hashes, issues signed session tokens and notifies
// subscribers when a user signs in or out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

const (
	minPasswordLength = 6
	minSecretLength   = 16
)

// ErrInvalidCredentials is reported for an unknown email or a wrong password.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", core.ErrAuthRequired)

// Config configures token issuing and password hashing.
type Config struct {
	Secret     []byte
	TTL        time.Duration
	Issuer     string
	BcryptCost int
	// Now is used when issuing tokens; defaults to time.Now.
	Now func() time.Time
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service registers users, signs them in and resolves their sessions.
type Service struct {
	users    entities.UserRepository
	cfg      Config
	validate *validator.Validate

	mu        sync.Mutex
	listeners map[int]func(core.AuthEvent)
	nextID    int
}

var _ core.Identity = (*Service)(nil)

// New builds the identity service over users. Secret must be at least 16 bytes.
func New(users entities.UserRepository, cfg Config) (*Service, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "lista-mercado"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:     users,
		cfg:       cfg,
		validate:  validator.New(),
		listeners: make(map[int]func(core.AuthEvent)),
	}, nil
}

// Register creates a user account. The email must be unused.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return core.User{}, core.NewValidationError("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return core.User{}, core.NewValidationError("password", "must be at least %d characters", minPasswordLength)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{ID: uuid.NewString(), DisplayName: displayName, Email: email}
	err = s.users.InsertUser(ctx, entities.UserRecord{User: user, PasswordHash: hash, CreatedAt: s.cfg.Now()})
	if errors.Is(err, entities.ErrDuplicate) {
		return core.User{}, core.NewValidationError("email", "is already registered")
	}
	if err != nil {
		return core.User{}, core.WrapBackend("register user", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// SignIn checks the credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, creds core.Credentials) (*core.Session, error) {
	rec, err := s.users.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, core.WrapBackend("sign in", err)
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.issue(rec.User)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "User signed in", "user_id", rec.User.ID)
	s.notify(core.AuthEvent{Type: core.AuthSignedIn, User: &rec.User, At: s.cfg.Now()})
	return sess, nil
}

// SignOut revokes the token so later lookups treat it as signed out.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.users.RevokeToken(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return core.WrapBackend("sign out", err)
	}
	user := core.User{ID: c.Subject, Email: c.Email, DisplayName: c.Name}
	slog.InfoContext(ctx, "User signed out", "user_id", user.ID)
	s.notify(core.AuthEvent{Type: core.AuthSignedOut, User: &user, At: s.cfg.Now()})
	return nil
}

// CurrentUser resolves a token to its user. Missing, malformed, expired and
// revoked tokens all yield core.ErrAuthRequired.
func (s *Service) CurrentUser(ctx context.Context, token string) (*core.User, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	return &sess.User, nil
}

// Session resolves a token to the session passed into the record services.
func (s *Service) Session(ctx context.Context, token string) (*core.Session, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.users.IsTokenRevoked(ctx, c.ID)
	if err != nil {
		return nil, core.WrapBackend("check token", err)
	}
	if revoked {
		return nil, core.ErrAuthRequired
	}
	rec, err := s.users.GetUser(ctx, c.Subject)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrAuthRequired
	}
	if err != nil {
		return nil, core.WrapBackend("load user", err)
	}
	return &core.Session{User: rec.User, Token: token, ExpiresAt: c.ExpiresAt.Time}, nil
}

// OnAuthStateChange registers fn for sign-in and sign-out events.
func (s *Service) OnAuthStateChange(fn func(core.AuthEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify(ev core.AuthEvent) {
	s.mu.Lock()
	fns := make([]func(core.AuthEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Service) issue(u core.User) (*core.Session, error) {
	now := s.cfg.Now()
	exp := now.Add(s.cfg.TTL)
	c := claims{
		Email: u.Email,
		Name:  u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &core.Session{User: u, Token: signed, ExpiresAt: exp}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.ErrAuthRequired
	}
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, core.ErrAuthRequired
	}
	if c.Subject == "" || c.ID == "" || c.ExpiresAt == nil || c.Issuer != s.cfg.Issuer {
		return nil, core.ErrAuthRequired
	}
	return c, nil
}
