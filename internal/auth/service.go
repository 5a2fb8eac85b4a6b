package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/models"
	"github.com/hashfydr/void-CLI/internal/store"
)

var (
	ErrAuthRequired       = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid username, email or password")
	ErrNotVerified        = errors.New("email not verified, run 'void verify' first")
	ErrInvalidToken       = errors.New("invalid verification code")
	ErrEmailDomain        = errors.New("email domain not allowed")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters without spaces or '@'")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
)

// Mailer delivers verification codes.
type Mailer interface {
	SendVerification(ctx context.Context, email, code string) error
}

// LogMailer writes verification codes to the log instead of sending mail.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) SendVerification(ctx context.Context, email, code string) error {
	m.Logger.Info().Str("email", email).Str("code", code).Msg("verification code issued")
	return nil
}

// Options configures a Service.
type Options struct {
	// ConfigDir holds the session file.
	ConfigDir string
	// Secret signs session tokens.
	Secret []byte
	// AllowedDomain, when set, restricts signups to one email domain.
	AllowedDomain string
	TokenTTL      time.Duration
}

// Service manages accounts and the local login session.
type Service struct {
	store         store.DataStore
	mailer        Mailer
	logger        zerolog.Logger
	configDir     string
	secret        []byte
	allowedDomain string
	ttl           time.Duration
	now           func() time.Time
}

// NewService creates an auth service.
func NewService(ds store.DataStore, mailer Mailer, logger zerolog.Logger, opts Options) *Service {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		store:         ds,
		mailer:        mailer,
		logger:        logger,
		configDir:     opts.ConfigDir,
		secret:        opts.Secret,
		allowedDomain: strings.ToLower(strings.TrimPrefix(opts.AllowedDomain, "@")),
		ttl:           ttl,
		now:           time.Now,
	}
}

func validUsername(username string) bool {
	if len(username) < 3 || len(username) > 32 {
		return false
	}
	return !strings.ContainsAny(username, "@ \t\r\n")
}

// IsUsernameAvailable reports whether no account uses username.
func (s *Service) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	acct, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("look up username: %w", err)
	}
	return acct == nil, nil
}

// Signup registers an unverified account and sends its verification
// code.
func (s *Service) Signup(ctx context.Context, email, password, username string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return nil, ErrInvalidEmail
	}
	if s.allowedDomain != "" && strings.ToLower(email[at+1:]) != s.allowedDomain {
		return nil, ErrEmailDomain
	}
	if !validUsername(username) {
		return nil, ErrInvalidUsername
	}

	available, err := s.IsUsernameAvailable(ctx, username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrUsernameTaken
	}
	existing, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	code := crypto.NewVerifyToken()

	acct := &models.Account{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		VerifyToken:  code,
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, acct.Email, code); err != nil {
		return acct, fmt.Errorf("send verification: %w", err)
	}
	s.logger.Info().Str("user_id", acct.ID).Str("username", acct.Username).Msg("account created")
	return acct, nil
}

// resolve finds an account by username, or by email when identifier
// contains '@'.
func (s *Service) resolve(ctx context.Context, identifier string) (*models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.store.GetAccountByEmail(ctx, identifier)
	}
	return s.store.GetAccountByUsername(ctx, identifier)
}

// Verify confirms an account's email with the code it was sent.
func (s *Service) Verify(ctx context.Context, identifier, code string) error {
	acct, err := s.resolve(ctx, identifier)
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}
	if acct == nil {
		return ErrInvalidToken
	}
	if acct.Verified {
		return nil
	}
	if acct.VerifyToken == "" || !strings.EqualFold(acct.VerifyToken, strings.TrimSpace(code)) {
		return ErrInvalidToken
	}
	return s.store.MarkVerified(ctx, acct.ID)
}

// Login checks credentials and stores a session token for later commands.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.Principal, error) {
	acct, err := s.resolve(ctx, identifier)
	if err != nil {
		return models.Principal{}, fmt.Errorf("look up account: %w", err)
	}
	if acct == nil {
		return models.Principal{}, ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(acct.PasswordHash, password); err != nil {
		return models.Principal{}, ErrInvalidCredentials
	}
	if !acct.Verified {
		return models.Principal{}, ErrNotVerified
	}

	token, err := s.issueToken(acct)
	if err != nil {
		return models.Principal{}, fmt.Errorf("issue token: %w", err)
	}
	if err := s.saveSession(sessionFile{Token: token, Email: acct.Email, Username: acct.Username}); err != nil {
		return models.Principal{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().Str("user_id", acct.ID).Msg("logged in")
	return models.Principal{UserID: acct.ID, Email: acct.Email}, nil
}

// Logout removes the local session.
func (s *Service) Logout(ctx context.Context) error {
	err := os.Remove(s.sessionPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CurrentUser returns the user of the stored session.
func (s *Service) CurrentUser(ctx context.Context) (models.Principal, error) {
	sf, err := s.loadSession()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Principal{}, ErrAuthRequired
		}
		return models.Principal{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	p, err := s.parseToken(sf.Token)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	return p, nil
}

// Profile returns the public profile of userID, nil if the account does
// not exist.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	acct, err := s.store.GetAccountByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, nil
	}
	return &models.Profile{UserID: acct.ID, Username: acct.Username}, nil
}
