package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lernguide/internal/logging"
	"lernguide/internal/medium"
	"lernguide/internal/metrics"
	"lernguide/internal/models"
)

// DefaultKey is the single fixed key holding the session snapshot.
const DefaultKey = "lern-guide-session"

var (
	// ErrQuotaExceeded is the medium's size rejection, re-exported for callers.
	ErrQuotaExceeded = medium.ErrQuotaExceeded
	// ErrStorageUnavailable wraps every other write failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrTransientState is returned when asked to persist an initial or loading screen.
	ErrTransientState = errors.New("refusing to persist transient screen state")
)

// Store reads and writes the snapshot under one key of a medium.
type Store struct {
	medium  medium.Medium
	key     string
	log     *logging.Logger
	metrics *metrics.Metrics
}

// New wraps m. An empty key selects DefaultKey; log and mt may be nil.
func New(m medium.Medium, key string, log *logging.Logger, mt *metrics.Metrics) *Store {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Store{medium: m, key: key, log: log.Named("store"), metrics: mt}
}

// Save overwrites the stored snapshot.
func (s *Store) Save(ctx context.Context, snap *models.SessionSnapshot) error {
	if snap == nil {
		return errors.New("snapshot required")
	}
	if snap.ScreenState.IsTransient() {
		return ErrTransientState
	}
	data, err := snap.Marshal()
	if err != nil {
		s.metrics.ObserveSave("error", 0)
		return fmt.Errorf("%w: encode snapshot: %w", ErrStorageUnavailable, err)
	}
	if err := s.medium.SetItem(ctx, s.key, string(data)); err != nil {
		if errors.Is(err, medium.ErrQuotaExceeded) {
			s.metrics.ObserveSave("quota", len(data))
			return fmt.Errorf("save snapshot (%d bytes): %w", len(data), ErrQuotaExceeded)
		}
		s.metrics.ObserveSave("error", len(data))
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	s.metrics.ObserveSave("ok", len(data))
	return nil
}

// Load returns the stored snapshot, or nil when there is none. A value that
// does not parse or validate is removed and reported as absent.
func (s *Store) Load(ctx context.Context) *models.SessionSnapshot {
	raw, found, err := s.medium.GetItem(ctx, s.key)
	if err != nil {
		s.log.Warn("read snapshot failed", zap.String("key", s.key), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	snap, err := models.ParseSnapshot([]byte(raw))
	if err != nil {
		s.log.Warn("discarding corrupt snapshot", zap.String("key", s.key), zap.Error(err))
		s.Clear(ctx)
		return nil
	}
	return snap
}

// Clear removes the stored snapshot. Failures are logged only.
func (s *Store) Clear(ctx context.Context) {
	if err := s.medium.RemoveItem(ctx, s.key); err != nil {
		s.log.Warn("clear snapshot failed", zap.String("key", s.key), zap.Error(err))
	}
}
