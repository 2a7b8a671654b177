package models

import "fmt"

// Settings is the persisted user configuration.
type Settings struct {
	EnabledSites map[string]bool    `json:"enabledSites"`
	DebugMode    bool               `json:"debugMode"`
	Thresholds   map[string]float64 `json:"thresholds"`
}

// SiteEnabled reports whether scanning is switched on for a site key.
// Unknown keys are disabled.
func (s *Settings) SiteEnabled(siteKey string) bool {
	if s == nil || s.EnabledSites == nil {
		return false
	}
	return s.EnabledSites[siteKey]
}

// Clone returns a deep copy so callers can read-modify-write safely.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := &Settings{
		EnabledSites: make(map[string]bool, len(s.EnabledSites)),
		DebugMode:    s.DebugMode,
		Thresholds:   make(map[string]float64, len(s.Thresholds)),
	}
	for k, v := range s.EnabledSites {
		out.EnabledSites[k] = v
	}
	for k, v := range s.Thresholds {
		out.Thresholds[k] = v
	}
	return out
}

// Validate checks thresholds are probabilities and keys are non-empty.
func (s *Settings) Validate() []error {
	var errs = make([]error, 0)
	for site := range s.EnabledSites {
		if site == "" {
			errs = append(errs, fmt.Errorf("site key must not be empty"))
		}
	}
	for label, v := range s.Thresholds {
		if label == "" {
			errs = append(errs, fmt.Errorf("threshold label must not be empty"))
			continue
		}
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("threshold %s=%v is outside [0,1]", label, v))
		}
	}
	return errs
}
