// memory based invite store for testing purposes
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/greatdennis/ccs-calendarserver/sharing"
)

// Store implements sharing.Store using in-memory maps. The mutex serializes
// writers, satisfying the store contract.
type Store struct {
	mu       sync.RWMutex
	byUserID map[string]sharing.Invite
	byUID    map[string]string // invite UID -> user ID
}

// New creates a new in-memory invite store.
func New() *Store {
	return &Store{}
}

// ensure lazily initializes the maps, mirroring storage that creates its
// schema on first use. Callers must hold the write lock.
func (s *Store) ensure() {
	if s.byUserID == nil {
		s.byUserID = make(map[string]sharing.Invite)
		s.byUID = make(map[string]string)
	}
}

// Create implements sharing.Store
func (s *Store) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	return nil
}

// Remove implements sharing.Store
func (s *Store) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUserID = nil
	s.byUID = nil
	return nil
}

// AllRecords implements sharing.Store
func (s *Store) AllRecords(ctx context.Context) ([]sharing.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]sharing.Invite, 0, len(s.byUserID))
	for _, invite := range s.byUserID {
		records = append(records, invite)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}

// RecordForUserID implements sharing.Store
func (s *Store) RecordForUserID(ctx context.Context, userID string) (*sharing.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.byUserID[userID]
	if !ok {
		return nil, nil
	}
	return &invite, nil
}

// RecordForInviteUID implements sharing.Store
func (s *Store) RecordForInviteUID(ctx context.Context, uid string) (*sharing.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUID[uid]
	if !ok {
		return nil, nil
	}
	invite := s.byUserID[userID]
	return &invite, nil
}

// AddOrUpdateRecord implements sharing.Store
func (s *Store) AddOrUpdateRecord(ctx context.Context, invite sharing.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	// Both keys are unique: displace any row sharing either one.
	if existing, ok := s.byUserID[invite.UserID]; ok {
		delete(s.byUID, existing.UID)
	}
	if userID, ok := s.byUID[invite.UID]; ok {
		delete(s.byUserID, userID)
	}

	s.byUserID[invite.UserID] = invite
	s.byUID[invite.UID] = invite.UserID
	return nil
}

// RemoveRecordForUserID implements sharing.Store
func (s *Store) RemoveRecordForUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.byUserID[userID]
	if !ok {
		return nil
	}
	delete(s.byUserID, userID)
	delete(s.byUID, invite.UID)
	return nil
}

// RemoveRecordForInviteUID implements sharing.Store
func (s *Store) RemoveRecordForInviteUID(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byUID[uid]
	if !ok {
		return nil
	}
	delete(s.byUserID, userID)
	delete(s.byUID, uid)
	return nil
}
