package wallet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// TokenKey is the well-known device storage key the bearer token lives under.
const TokenKey = "accessToken"

type Authenticator interface {
	// Login exchanges credentials for a bearer token
	Login(ctx context.Context, email, password string) (string, error)
	// Register creates a new remote account, it does not log in
	Register(ctx context.Context, r Registration) error
}

// DeviceStorage is durable key/value storage that survives process restart.
type DeviceStorage interface {
	// Get returns ok=false when the key is absent
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Sealer encrypts the token before it reaches device storage.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SessionStore is the only writer of the session token.
type SessionStore struct {
	store   *Store
	auth    Authenticator
	storage DeviceStorage
	sealer  Sealer
	logger  *zap.Logger
}

// NewSessionStore builds a session store, sealer may be nil to keep the token in plain text.
func NewSessionStore(store *Store, auth Authenticator, storage DeviceStorage, sealer Sealer, l *zap.Logger) *SessionStore {
	return &SessionStore{
		store:   store,
		auth:    auth,
		storage: storage,
		sealer:  sealer,
		logger:  l,
	}
}

// Restore loads a token persisted by an earlier process. A token that can't be read back is dropped.
func (s *SessionStore) Restore(ctx context.Context) error {
	raw, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("storage get token: %w", err)
	}
	if !ok {
		s.logger.Debug("session: no stored token")
		return nil
	}

	token := raw
	if s.sealer != nil {
		token, err = s.sealer.Open(raw)
		if err != nil {
			s.logger.Warn("session: stored token can't be opened, discarding it", zap.Error(err))
			if delErr := s.storage.Delete(ctx, TokenKey); delErr != nil {
				s.logger.Warn("session: failed to delete unreadable token", zap.Error(delErr))
			}
			return nil
		}
	}
	if token == "" {
		return nil
	}

	s.store.dispatch(tokenIssued{token: token})
	s.logger.Debug("session: token restored from device storage")

	return nil
}

// Login authenticates against the remote service and persists the token.
// Every failure, including an unreachable service, is reported as *AuthError.
func (s *SessionStore) Login(ctx context.Context, email, password string) (Session, error) {
	if err := ValidateLogin(email, password); err != nil {
		return Session{}, err
	}

	token, err := s.auth.Login(ctx, email, password)
	if err == nil && token == "" {
		err = &AuthError{Reason: "login failed: empty token"}
	}
	if err != nil {
		// a token may only outlive a login that succeeded
		s.Logout(ctx)

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return Session{}, err
		}
		return Session{}, &AuthError{Reason: "login failed", Err: err}
	}

	stored := token
	if s.sealer != nil {
		stored, err = s.sealer.Seal(token)
		if err != nil {
			return Session{}, fmt.Errorf("seal token: %w", err)
		}
	}
	if err := s.storage.Set(ctx, TokenKey, stored); err != nil {
		return Session{}, fmt.Errorf("storage set token: %w", err)
	}

	s.store.dispatch(tokenIssued{token: token})
	s.logger.Info("session: logged in", zap.String("email", email))

	return Session{Token: token}, nil
}

// Register validates the form and creates the remote account.
func (s *SessionStore) Register(ctx context.Context, r Registration) error {
	if err := ValidateRegistration(r); err != nil {
		return err
	}
	if err := s.auth.Register(ctx, r); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.logger.Info("session: registered", zap.String("email", r.Email))
	return nil
}

// Logout clears the token in memory first, then best-effort in device storage. It never fails.
func (s *SessionStore) Logout(ctx context.Context) {
	s.store.dispatch(tokenRevoked{})

	if err := s.storage.Delete(ctx, TokenKey); err != nil {
		s.logger.Warn("session: failed to delete stored token", zap.Error(err))
		return
	}
	s.logger.Info("session: logged out")
}

func (s *SessionStore) CurrentToken() (string, bool) {
	return s.store.CurrentToken()
}
