package service

import (
	"time"

	"github.com/xolan/mondo/internal/clock"
	"github.com/xolan/mondo/internal/config"
)

// ClockService builds the countdown and together clocks from config.
type ClockService struct {
	config config.Config
}

// NewClockService creates a new ClockService
func NewClockService(cfg config.Config) *ClockService {
	return &ClockService{config: cfg}
}

// CountdownSpec returns the spec counting down to the configured target.
func (s *ClockService) CountdownSpec() (clock.Spec, error) {
	return s.config.CountdownSpec()
}

// TogetherSpec returns the spec counting up from the configured start.
func (s *ClockService) TogetherSpec() (clock.Spec, error) {
	return s.config.TogetherSpec()
}

// Countdown returns the countdown breakdown at now.
func (s *ClockService) Countdown(now time.Time) (clock.Breakdown, error) {
	spec, err := s.CountdownSpec()
	if err != nil {
		return clock.Breakdown{}, err
	}
	return spec.Tick(now), nil
}

// Together returns the elapsed breakdown at now.
func (s *ClockService) Together(now time.Time) (clock.Breakdown, error) {
	spec, err := s.TogetherSpec()
	if err != nil {
		return clock.Breakdown{}, err
	}
	return spec.Tick(now), nil
}

// Location returns the display timezone, falling back to local time.
func (s *ClockService) Location() *time.Location {
	loc, err := s.config.Location()
	if err != nil {
		return time.Local
	}
	return loc
}
