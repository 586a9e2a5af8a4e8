// Package monitor periodically writes the engine status to a JSON file.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/trackplay/internal/live"
	"github.com/OCAP2/trackplay/internal/playback"
	"github.com/OCAP2/trackplay/internal/timeutil"
	"github.com/rs/zerolog"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	// Channels lists live channels, usually live.Tracker.Snapshot.
	Channels func() []live.Status
	// Sessions lists replay sessions.
	Sessions   func() []playback.Status
	StatusFile string
	Interval   time.Duration
	Clock      timeutil.Clock
	Logger     zerolog.Logger
}

// Status is the document written to the status file.
type Status struct {
	Time     time.Time         `json:"time"`
	Channels []live.Status     `json:"channels"`
	Sessions []playback.Status `json:"sessions"`
}

// Service manages status monitoring
type Service struct {
	deps   Dependencies
	logger zerolog.Logger

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{
		deps:   deps,
		logger: deps.Logger.With().Str("module", "monitor").Logger(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Collect gathers the current status.
func (s *Service) Collect() Status {
	st := Status{
		Time:     s.deps.Clock.Now().UTC(),
		Channels: []live.Status{},
		Sessions: []playback.Status{},
	}
	if s.deps.Channels != nil {
		st.Channels = append(st.Channels, s.deps.Channels()...)
	}
	if s.deps.Sessions != nil {
		st.Sessions = append(st.Sessions, s.deps.Sessions()...)
	}
	return st
}

// WriteStatus writes the current status to the status file. The file is
// replaced atomically so readers never see a partial document.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.Collect(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	dir := filepath.Dir(s.deps.StatusFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return fmt.Errorf("creating status file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.deps.StatusFile); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	if s.deps.StatusFile == "" {
		return fmt.Errorf("status file not configured")
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	ticker := s.deps.Clock.NewTicker(s.deps.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.logger.Debug().Str("path", s.deps.StatusFile).Msg("Starting status monitor goroutine")
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				if err := s.WriteStatus(); err != nil {
					s.logger.Error().Err(err).Msg("Error writing status file")
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = nil
	done := s.done
	s.mu.Unlock()
	<-done
}
