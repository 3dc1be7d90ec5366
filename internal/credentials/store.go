// Package credentials holds the run's mutable access token: the only state
// shared across pipeline steps. Refresh is an atomic swap; readers never
// observe a half-updated credential.
package credentials

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// Credential is the current access token plus evidence of when it was issued.
type Credential struct {
	Token    string
	IssuedAt time.Time
}

// TokenSource obtains a fresh token from the issuing authority.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// Store serves the current credential to every authenticated source call and
// refreshes it on demand. A refreshed token is persisted back into the .env
// file so a restarted run does not burn the issuer's token quota.
type Store struct {
	mu      sync.RWMutex
	cred    Credential
	source  TokenSource
	envPath string
	envKey  string
	log     *logger.Logger
}

func NewStore(initialToken string, source TokenSource, envPath, envKey string, log *logger.Logger) *Store {
	s := &Store{
		source:  source,
		envPath: envPath,
		envKey:  envKey,
		log:     log.With("component", "CredentialStore"),
	}
	if initialToken != "" {
		s.cred = Credential{Token: initialToken, IssuedAt: time.Now()}
	}
	return s
}

// Current returns the credential as of this instant.
func (s *Store) Current() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Refresh fetches a new token, swaps it in atomically, and persists it.
// Persistence failure is logged but does not fail the refresh: the in-memory
// credential is already valid for the rest of the run.
func (s *Store) Refresh(ctx context.Context) (Credential, error) {
	token, err := s.source.FetchToken(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("refresh token: %w", err)
	}

	cred := Credential{Token: token, IssuedAt: time.Now()}
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	if err := writeEnvValue(s.envPath, s.envKey, token); err != nil {
		s.log.Warn("could not persist refreshed token", "path", s.envPath, "error", err)
	} else {
		s.log.Info("access token refreshed and persisted", "path", s.envPath)
	}
	return cred, nil
}

// writeEnvValue replaces the value of key in the key=value file at path,
// leaving every other line untouched. The key is appended when absent.
func writeEnvValue(path, key, value string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	line := key + "=" + value
	pattern := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `=.*$`)

	var updated string
	if pattern.Match(content) {
		updated = pattern.ReplaceAllString(string(content), line)
	} else {
		updated = strings.TrimRight(string(content), "\n") + "\n" + line + "\n"
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(updated), info.Mode().Perm())
}
