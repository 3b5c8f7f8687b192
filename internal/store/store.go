// Package store persists the user profile and conversation snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/conversation"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: not found")

const (
	keyProfile = "profile"
	keyRecents = "conversation:recents"
	keyHistory = "conversation:history"
)

// Profile is what onboarding records about the user.
type Profile struct {
	Name               string `json:"name"`
	Language           string `json:"language"`
	Gender             string `json:"gender"`
	OnboardingComplete bool   `json:"onboardingComplete"`
}

// Options configures the store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string
	// InMemory keeps everything in memory.
	InMemory bool
}

// Store is a badger-backed key/value store of JSON documents.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates the store.
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Dir is required for on-disk mode")
	}
	logger = logger.With().Str("component", "store").Logger()

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info().Str("dir", opts.Dir).Bool("inMemory", opts.InMemory).Msg("Store opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) get(_ context.Context, key string, v any) error {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Profile returns the saved profile. A fresh store returns a zero profile
// with OnboardingComplete false.
func (s *Store) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := s.get(ctx, keyProfile, &p)
	if errors.Is(err, ErrNotFound) {
		return Profile{}, nil
	}
	return p, err
}

// SaveProfile replaces the profile.
func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	return s.put(ctx, keyProfile, p)
}

// Recents returns the saved recent phrases, newest first.
func (s *Store) Recents(ctx context.Context) ([]conversation.Phrase, error) {
	var out []conversation.Phrase
	err := s.get(ctx, keyRecents, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// SaveRecents replaces the recent phrases.
func (s *Store) SaveRecents(ctx context.Context, phrases []conversation.Phrase) error {
	return s.put(ctx, keyRecents, phrases)
}

// History returns the saved conversation, oldest first.
func (s *Store) History(ctx context.Context) ([]conversation.Message, error) {
	var out []conversation.Message
	err := s.get(ctx, keyHistory, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// SaveHistory replaces the saved conversation.
func (s *Store) SaveHistory(ctx context.Context, msgs []conversation.Message) error {
	return s.put(ctx, keyHistory, msgs)
}

// ClearConversation deletes the saved conversation and recents.
func (s *Store) ClearConversation(ctx context.Context) error {
	if err := s.delete(ctx, keyHistory); err != nil {
		return err
	}
	return s.delete(ctx, keyRecents)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger output to zerolog, dropping info and debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) { l.logger.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn().Msgf(f, v...)
}
func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
