// Package gate implements the PIN check in front of the shared bucket list.
// It keeps the shell honest, nothing more: anyone with store access can read
// the data without a PIN.
package gate

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xolan/mondo/internal/docstore"
)

const (
	// Collection and DocumentID locate the settings document.
	Collection = "security"
	DocumentID = "settings"

	// DefaultPIN is installed by Init when no settings exist.
	DefaultPIN = "0720"

	fieldHash        = "pin_hash"
	fieldLegacyPIN   = "pin"
	fieldLastUpdated = "last_updated"
)

// ErrInvalidPIN is returned when a new PIN is not 4 to 8 digits.
var ErrInvalidPIN = errors.New("PIN must be 4 to 8 digits")

var pinPattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// ValidatePIN checks the PIN format.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPIN
	}
	return nil
}

// Gate verifies and updates the PIN kept in the store.
type Gate struct {
	store      docstore.Store
	logger     *slog.Logger
	cost       int
	now        func() time.Time
	defaultPIN string
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(g *Gate) { g.cost = cost }
}

// WithNow overrides the clock used for last_updated.
func WithNow(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithDefaultPIN overrides the PIN installed by Init.
func WithDefaultPIN(pin string) Option {
	return func(g *Gate) { g.defaultPIN = pin }
}

// New creates a Gate over store.
func New(store docstore.Store, opts ...Option) *Gate {
	g := &Gate{
		store:      store,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
		defaultPIN: DefaultPIN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Init creates the settings document with the default PIN if it is missing.
func (g *Gate) Init(ctx context.Context) error {
	_, err := g.store.Get(ctx, Collection, DocumentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("load security settings: %w", err)
	}

	g.logger.Info("initialising security settings with default PIN")
	return g.write(ctx, g.defaultPIN, g.store.Set)
}

// Verify reports whether pin matches the stored PIN. No PIN matches while
// the settings document is missing. Settings written by older clients hold
// the PIN in clear text; a match upgrades them to a hash.
func (g *Gate) Verify(ctx context.Context, pin string) (bool, error) {
	doc, err := g.store.Get(ctx, Collection, DocumentID)
	if errors.Is(err, docstore.ErrNotFound) {
		g.logger.Debug("security settings missing")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load security settings: %w", err)
	}

	if hash := doc.Fields.String(fieldHash); hash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("compare PIN: %w", err)
		}
	}

	legacy := doc.Fields.String(fieldLegacyPIN)
	if legacy == "" || subtle.ConstantTimeCompare([]byte(legacy), []byte(pin)) != 1 {
		return false, nil
	}

	if err := g.upgrade(ctx, pin); err != nil {
		g.logger.Warn("upgrading stored PIN failed", slog.Any("error", err))
	}
	return true, nil
}

// SetPIN replaces the stored PIN. Other fields of the settings document are
// kept.
func (g *Gate) SetPIN(ctx context.Context, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	return g.write(ctx, pin, g.merge)
}

// LastUpdated returns when the PIN was last changed.
func (g *Gate) LastUpdated(ctx context.Context) (time.Time, error) {
	doc, err := g.store.Get(ctx, Collection, DocumentID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load security settings: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, doc.Fields.String(fieldLastUpdated))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last_updated: %w", err)
	}
	return ts, nil
}

func (g *Gate) upgrade(ctx context.Context, pin string) error {
	return g.write(ctx, pin, g.merge)
}

// merge updates the settings document in place, dropping any clear-text PIN,
// and creates it when missing.
func (g *Gate) merge(ctx context.Context, collection, id string, fields docstore.Fields) error {
	fields[fieldLegacyPIN] = nil
	err := g.store.Update(ctx, collection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		delete(fields, fieldLegacyPIN)
		return g.store.Set(ctx, collection, id, fields)
	}
	return err
}

type writeFunc func(ctx context.Context, collection, id string, fields docstore.Fields) error

func (g *Gate) write(ctx context.Context, pin string, fn writeFunc) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), g.cost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}

	fields := docstore.Fields{
		fieldHash:        string(hash),
		fieldLastUpdated: g.now().UTC().Format(time.RFC3339),
	}
	if err := fn(ctx, Collection, DocumentID, fields); err != nil {
		return fmt.Errorf("save security settings: %w", err)
	}
	return nil
}

// Session is the shell's unlocked flag. The zero value is locked.
type Session struct {
	mu       sync.RWMutex
	unlocked bool
}

// Attempt verifies pin and unlocks the session on a match.
func (s *Session) Attempt(ctx context.Context, g *Gate, pin string) (bool, error) {
	ok, err := g.Verify(ctx, pin)
	if err != nil || !ok {
		return false, err
	}
	s.Unlock()
	return true, nil
}

// Unlock opens the session.
func (s *Session) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
}

// Lock closes the session.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = false
}

// Unlocked reports whether the session is open.
func (s *Session) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlocked
}
