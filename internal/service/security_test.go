package service

import (
	"context"
	"errors"
	"testing"

	"github.com/xolan/mondo/internal/gate"
)

func TestSecurityService_DefaultPIN(t *testing.T) {
	services := newTestServices(t)
	ctx := context.Background()

	if err := services.Security.Verify(ctx, gate.DefaultPIN); err != nil {
		t.Fatalf("expected default PIN to verify, got %v", err)
	}
	if err := services.Security.Verify(ctx, "1234"); !errors.Is(err, ErrWrongPIN) {
		t.Errorf("expected ErrWrongPIN, got %v", err)
	}

	if _, err := services.Security.LastUpdated(ctx); err != nil {
		t.Errorf("expected last_updated after init, got %v", err)
	}
}

func TestSecurityService_Change(t *testing.T) {
	services := newTestServices(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		current string
		next    string
		wantErr error
	}{
		{"wrong current", "1111", "2468", ErrWrongPIN},
		{"invalid next", gate.DefaultPIN, "12a4", gate.ErrInvalidPIN},
		{"success", gate.DefaultPIN, "2468", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := services.Security.Change(ctx, tt.current, tt.next)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	if err := services.Security.Verify(ctx, "2468"); err != nil {
		t.Errorf("new PIN should verify: %v", err)
	}
	if err := services.Security.Verify(ctx, gate.DefaultPIN); !errors.Is(err, ErrWrongPIN) {
		t.Errorf("old PIN should be rejected, got %v", err)
	}
}
