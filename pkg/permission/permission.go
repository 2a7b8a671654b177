// Package permission tracks named capability grants. The classifier needs
// the TrialML grant before it will create an engine.
package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dtnitsch/ragebait-block/pkg/kv"
)

// TrialML is the grant that unlocks the classification engine.
const TrialML = "trialML"

// StorageKey is where the granted set is persisted.
const StorageKey = "permissions"

// ErrDenied is returned by callers that need a grant the user has not given.
var ErrDenied = errors.New("permission not granted")

type grants struct {
	Granted []string `json:"granted"`
}

// Manager reads and writes grants. Writes are serialized within a process.
type Manager struct {
	kv kv.Store
	mu sync.Mutex
}

func NewManager(backend kv.Store) *Manager {
	return &Manager{kv: backend}
}

// Contains reports whether name has been granted.
func (m *Manager) Contains(ctx context.Context, name string) (bool, error) {
	g, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(g.Granted, name), nil
}

// Request grants name. Running the setup command is the user's consent, so
// the request always succeeds unless the store fails.
func (m *Manager) Request(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("permission name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(g.Granted, name) {
		return true, nil
	}
	g.Granted = append(g.Granted, name)
	slices.Sort(g.Granted)
	return true, m.save(ctx, g)
}

// Revoke removes name from the granted set.
func (m *Manager) Revoke(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.load(ctx)
	if err != nil {
		return err
	}
	g.Granted = slices.DeleteFunc(g.Granted, func(s string) bool { return s == name })
	return m.save(ctx, g)
}

func (m *Manager) load(ctx context.Context) (*grants, error) {
	raw, err := m.kv.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return &grants{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	var g grants
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return &g, nil
}

func (m *Manager) save(ctx context.Context, g *grants) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	if err := m.kv.Set(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("failed to save permissions: %w", err)
	}
	return nil
}
