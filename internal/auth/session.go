package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/hashfydr/void-CLI/internal/models"
)

const sessionFileName = "session.json"

// sessionFile is what a login leaves on disk.
type sessionFile struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type claims struct {
	Email string `json:"email"`
	gojwt.RegisteredClaims
}

func (s *Service) sessionPath() string {
	return filepath.Join(s.configDir, sessionFileName)
}

func (s *Service) issueToken(acct *models.Account) (string, error) {
	now := s.now()
	c := claims{
		Email: acct.Email,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   acct.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Service) parseToken(token string) (models.Principal, error) {
	var c claims
	_, err := gojwt.ParseWithClaims(token, &c, func(t *gojwt.Token) (any, error) {
		return s.secret, nil
	}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}), gojwt.WithTimeFunc(s.now))
	if err != nil {
		return models.Principal{}, err
	}
	if c.Subject == "" {
		return models.Principal{}, errors.New("token has no subject")
	}
	return models.Principal{UserID: c.Subject, Email: c.Email}, nil
}

func (s *Service) saveSession(sf sessionFile) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(sf, "", "  ")
	return os.WriteFile(s.sessionPath(), data, 0600)
}

func (s *Service) loadSession() (sessionFile, error) {
	var sf sessionFile
	data, err := os.ReadFile(s.sessionPath())
	if err != nil {
		return sf, err
	}
	err = json.Unmarshal(data, &sf)
	return sf, err
}

// DefaultTokenTTL is how long a login stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour
