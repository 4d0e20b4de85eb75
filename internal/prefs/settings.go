package prefs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/navigation"
)

const (
	keyLastRoot     = "wiki.last_root"
	keySessionPrefx = "session:"
)

// RootSetting is the "last opened wiki root" record.
type RootSetting struct {
	store Store
}

// NewRootSetting returns the root record kept in store.
func NewRootSetting(store Store) *RootSetting {
	return &RootSetting{store: store}
}

// Load returns the remembered root directory; ok is false when none is set.
func (r *RootSetting) Load() (root string, ok bool, err error) {
	v, err := r.store.Get(keyLastRoot)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && v == "") {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Save remembers root.
func (r *RootSetting) Save(root string) error {
	return r.store.Set(keyLastRoot, root)
}

// Reset forgets the remembered root.
func (r *RootSetting) Reset() error {
	return r.store.Delete(keyLastRoot)
}

// SessionState persists navigation snapshots, one per wiki root.
type SessionState struct {
	store Store
	key   string
}

// NewSessionState returns the session record for the wiki at root.
func NewSessionState(store Store, root string) *SessionState {
	return &SessionState{store: store, key: keySessionPrefx + root}
}

// Load returns the last saved snapshot; ok is false when none exists.
func (s *SessionState) Load() (snap navigation.Snapshot, ok bool, err error) {
	v, err := s.store.Get(s.key)
	if errors.Is(err, apperr.ErrNotFound) {
		return navigation.Snapshot{}, false, nil
	}
	if err != nil {
		return navigation.Snapshot{}, false, err
	}
	if err := json.Unmarshal([]byte(v), &snap); err != nil {
		return navigation.Snapshot{}, false, fmt.Errorf("prefs: decode session: %w", err)
	}
	return snap, true, nil
}

// Save stores snap.
func (s *SessionState) Save(snap navigation.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("prefs: encode session: %w", err)
	}
	return s.store.Set(s.key, string(data))
}
