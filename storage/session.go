package storage

import (
	"fmt"
	"strings"
)

// SessionStorage persists the durable user id of each client session.
// It plays the part browser local storage plays for a single-page app.
type SessionStorage struct {
	db *DB
}

// NewSessionStorage creates a session storage on db
func NewSessionStorage(db *DB) *SessionStorage {
	return &SessionStorage{db: db}
}

// SaveUserID stores userID under sessionKey, replacing any previous value
func (s *SessionStorage) SaveUserID(sessionKey, userID string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return fmt.Errorf("session key is required")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if err := s.db.put(sessionsBucket, sessionKey, []byte(userID)); err != nil {
		return fmt.Errorf("failed to save user id: %w", err)
	}
	return nil
}

// LoadUserID returns the user id stored for sessionKey or ErrNotFound
func (s *SessionStorage) LoadUserID(sessionKey string) (string, error) {
	v, err := s.db.get(sessionsBucket, sessionKey)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// DeleteUserID forgets sessionKey. Deleting an unknown key is not an error.
func (s *SessionStorage) DeleteUserID(sessionKey string) error {
	if err := s.db.delete(sessionsBucket, sessionKey); err != nil {
		return fmt.Errorf("failed to delete user id: %w", err)
	}
	return nil
}

// GetMeta reads a value from the metadata bucket
func (s *SessionStorage) GetMeta(key string) (string, error) {
	v, err := s.db.get(metaBucket, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SetMeta writes a value to the metadata bucket
func (s *SessionStorage) SetMeta(key, value string) error {
	return s.db.put(metaBucket, key, []byte(value))
}
