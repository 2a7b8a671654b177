// Package settings persists the user configuration under a single key and
// merges it over built-in defaults on every read, so sites and labels added
// in newer releases show up for users with older stored settings.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/kv"
)

// StorageKey is the single key the settings value lives under.
const StorageKey = "settings"

// ErrInvalid wraps validation failures from Save.
var ErrInvalid = errors.New("invalid settings")

// Defaults returns a fresh copy of the built-in settings.
func Defaults() *models.Settings {
	return &models.Settings{
		EnabledSites: map[string]bool{
			"bbc.co.uk":   false,
			"bbc.com":     false,
			"reddit.com":  true,
			"youtube.com": true,
		},
		DebugMode: false,
		Thresholds: map[string]float64{
			"NEGATIVE": 0.95,
			"POSITIVE": 1.0,
		},
	}
}

// stored mirrors models.Settings with optional fields so absence can be
// told apart from zero values.
type stored struct {
	EnabledSites map[string]bool    `json:"enabledSites"`
	DebugMode    *bool              `json:"debugMode"`
	Thresholds   map[string]float64 `json:"thresholds"`
}

// merge overlays a stored (possibly partial) value onto the defaults, key by
// key for the nested maps.
func merge(s *stored) *models.Settings {
	out := Defaults()
	if s == nil {
		return out
	}
	for site, enabled := range s.EnabledSites {
		out.EnabledSites[site] = enabled
	}
	if s.DebugMode != nil {
		out.DebugMode = *s.DebugMode
	}
	for label, v := range s.Thresholds {
		out.Thresholds[label] = v
	}
	return out
}

// Store reads and writes settings through a kv.Store.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// NewStore wraps a key-value backend.
func NewStore(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: backend, logger: logger}
}

// Load returns the stored settings merged over defaults. A missing or
// unreadable value yields the defaults; only backend failures are errors.
func (s *Store) Load(ctx context.Context) (*models.Settings, error) {
	raw, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var st stored
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("stored settings are not valid JSON, using defaults", "error", err)
		return Defaults(), nil
	}
	s.dropInvalid(&st)
	return merge(&st), nil
}

// dropInvalid removes stored entries Save would reject, so a bad value
// written by an older build or by hand falls back to its default instead
// of failing every later Save.
func (s *Store) dropInvalid(st *stored) {
	for site := range st.EnabledSites {
		if site == "" {
			s.logger.Warn("dropping stored site with empty key")
			delete(st.EnabledSites, site)
		}
	}
	for label, v := range st.Thresholds {
		if label == "" || v < 0 || v > 1 {
			s.logger.Warn("dropping invalid stored threshold", "label", label, "value", v)
			delete(st.Thresholds, label)
		}
	}
}

// Save persists a full replacement of the settings value. There is no
// partial update; concurrent read-modify-write cycles race and the last
// writer wins.
func (s *Store) Save(ctx context.Context, settings *models.Settings) error {
	if settings == nil {
		return fmt.Errorf("settings must not be nil")
	}
	if errs := settings.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Install runs on first install and on upgrade: it writes back the merged
// structure so the stored value is always complete.
func (s *Store) Install(ctx context.Context) (*models.Settings, error) {
	merged, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, merged); err != nil {
		return nil, err
	}
	s.logger.Info("settings initialized",
		"sites", len(merged.EnabledSites), "thresholds", len(merged.Thresholds))
	return merged, nil
}

// SetSite toggles one site.
func (s *Store) SetSite(ctx context.Context, site string, enabled bool) error {
	return s.update(ctx, func(st *models.Settings) error {
		if site == "" {
			return fmt.Errorf("site key must not be empty")
		}
		st.EnabledSites[site] = enabled
		return nil
	})
}

// SetDebug switches debug (annotate instead of hide) mode.
func (s *Store) SetDebug(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(st *models.Settings) error {
		st.DebugMode = enabled
		return nil
	})
}

// SetThreshold sets the suppression threshold for one label.
func (s *Store) SetThreshold(ctx context.Context, label string, value float64) error {
	return s.update(ctx, func(st *models.Settings) error {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: threshold %v is outside [0,1]", ErrInvalid, value)
		}
		st.Thresholds[label] = value
		return nil
	})
}

func (s *Store) update(ctx context.Context, mutate func(*models.Settings) error) error {
	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := mutate(st); err != nil {
		return err
	}
	return s.Save(ctx, st)
}
