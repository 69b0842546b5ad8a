package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xolan/mondo/internal/gate"
)

// Common errors for the PIN gate
var (
	ErrWrongPIN = errors.New("incorrect PIN")
	ErrLocked   = errors.New("bucket list is locked")
)

// SecurityService verifies and changes the shared PIN.
type SecurityService struct {
	gate    *gate.Gate
	timeout time.Duration
}

// NewSecurityService creates a new SecurityService
func NewSecurityService(g *gate.Gate, timeout time.Duration) *SecurityService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SecurityService{gate: g, timeout: timeout}
}

// Gate returns the underlying gate.
func (s *SecurityService) Gate() *gate.Gate {
	return s.gate
}

// Verify checks pin, creating the settings with the default PIN on first
// use.
func (s *SecurityService) Verify(ctx context.Context, pin string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.gate.Init(ctx); err != nil {
		return err
	}
	ok, err := s.gate.Verify(ctx, pin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPIN
	}
	return nil
}

// Change replaces the PIN after checking the current one.
func (s *SecurityService) Change(ctx context.Context, current, next string) error {
	if err := gate.ValidatePIN(next); err != nil {
		return err
	}
	if err := s.Verify(ctx, current); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.gate.SetPIN(ctx, next); err != nil {
		return fmt.Errorf("failed to change PIN: %w", err)
	}
	return nil
}

// LastUpdated returns when the PIN was last changed.
func (s *SecurityService) LastUpdated(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gate.LastUpdated(ctx)
}
