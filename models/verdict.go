// Package models defines data structures shared by the scanner, the
// classifier and the command surfaces.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LabelScore is one label/score pair returned by the classification engine.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Verdict is the result of classifying one text. Exactly one of Labels or
// Error is meaningful: a non-empty Error means the engine failed and Labels
// must be ignored.
type Verdict struct {
	Labels []LabelScore
	Error  string
}

// Failed reports whether the verdict carries an engine error.
func (v Verdict) Failed() bool {
	return v.Error != ""
}

// MarshalJSON encodes the verdict the way the runML message contract expects:
// a bare array of {label, score} on success, {"error": msg} on failure.
func (v Verdict) MarshalJSON() ([]byte, error) {
	if v.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{v.Error})
	}
	labels := v.Labels
	if labels == nil {
		labels = []LabelScore{}
	}
	return json.Marshal(labels)
}

// UnmarshalJSON accepts both shapes produced by MarshalJSON.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty verdict")
	}

	switch trimmed[0] {
	case '[':
		var labels []LabelScore
		if err := json.Unmarshal(trimmed, &labels); err != nil {
			return fmt.Errorf("failed to decode verdict labels: %w", err)
		}
		*v = Verdict{Labels: labels}
	case '{':
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return fmt.Errorf("failed to decode verdict error: %w", err)
		}
		if e.Error == "" {
			e.Error = "unknown engine error"
		}
		*v = Verdict{Error: e.Error}
	default:
		return fmt.Errorf("unexpected verdict payload: %q", trimmed)
	}
	return nil
}
