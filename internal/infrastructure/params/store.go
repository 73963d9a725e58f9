package params

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/log"
)

// Store holds the current validated detection parameters. Invalid updates
// are rejected and the previous snapshot stays in effect.
type Store struct {
	mu      sync.RWMutex
	current entity.DetectionParams
	path    string
	modTime time.Time
}

// NewStore returns a store seeded with p, which must be valid.
func NewStore(p entity.DetectionParams) (*Store, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Store{current: p}, nil
}

// LoadFile reads a YAML file on top of the defaults and remembers its path for Watch.
func LoadFile(path string) (*Store, error) {
	s := &Store{current: entity.DefaultDetectionParams(), path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot.
func (s *Store) Current() entity.DetectionParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the snapshot after normalizing and validating it.
func (s *Store) Update(p entity.DetectionParams) (entity.DetectionParams, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return p, nil
}

// Reload re-reads the file given to LoadFile.
func (s *Store) Reload() error {
	if s.path == "" {
		return errors.New("params store has no file")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat params file: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read params file: %w", err)
	}

	p := s.Current()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: parse %s: %v", entity.ErrInvalidParams, s.path, err)
	}
	if _, err := s.Update(p); err != nil {
		return fmt.Errorf("params file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return nil
}

// Save writes the active snapshot back to the file.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.Current())
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write params file: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.mu.Lock()
		s.modTime = info.ModTime()
		s.mu.Unlock()
	}
	return nil
}

// Watch polls the file and reloads it when its modification time changes.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(s.path)
		if err != nil {
			continue
		}
		s.mu.RLock()
		changed := !info.ModTime().Equal(s.modTime)
		s.mu.RUnlock()
		if !changed {
			continue
		}

		if err := s.Reload(); err != nil {
			log.Warn("params reload rejected, keeping previous", "error", err)
			s.mu.Lock()
			s.modTime = info.ModTime()
			s.mu.Unlock()
			continue
		}
		log.Info("params reloaded", "params", s.Current())
	}
}

var _ port.ParamSource = (*Store)(nil)
