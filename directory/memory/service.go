// memory based directory service for testing purposes
package memory

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/greatdennis/ccs-calendarserver/directory"
)

// Service implements directory.Service using in-memory maps.
type Service struct {
	mu      sync.RWMutex
	records map[directory.RecordType]map[string]*directory.Record // type -> shortName -> record
	byUID   map[string]*directory.Record
	logger  *slog.Logger
}

// New creates a new in-memory directory service.
func New(opts ...Option) *Service {
	s := &Service{
		records: make(map[directory.RecordType]map[string]*directory.Record),
		byUID:   make(map[string]*directory.Record),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Option represents a configuration option for the Service
type Option func(*Service)

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// AddRecord adds a record to the directory. Short names must be unique
// within a record type.
func (s *Service) AddRecord(rec directory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.records[rec.Type]
	if !ok {
		byName = make(map[string]*directory.Record)
		s.records[rec.Type] = byName
	}

	if _, exists := byName[rec.ShortName]; exists {
		s.logger.Warn("failed to add record: short name already exists",
			"type", rec.Type,
			"short_name", rec.ShortName)
		return fmt.Errorf("record already exists: %s/%s", rec.Type, rec.ShortName)
	}

	stored := rec
	byName[rec.ShortName] = &stored
	if rec.UID != "" {
		s.byUID[rec.UID] = &stored
	}

	s.logger.Debug("record added",
		"type", rec.Type,
		"short_name", rec.ShortName,
		"uid", rec.UID)

	return nil
}

// RemoveRecord deletes a record, if present.
func (s *Service) RemoveRecord(recordType directory.RecordType, shortName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.records[recordType]
	if !ok {
		return
	}
	rec, ok := byName[shortName]
	if !ok {
		return
	}
	delete(byName, shortName)
	delete(s.byUID, rec.UID)
}

// RecordTypes implements directory.Service
func (s *Service) RecordTypes() []directory.RecordType {
	return []directory.RecordType{
		directory.RecordTypeUser,
		directory.RecordTypeGroup,
		directory.RecordTypeLocation,
		directory.RecordTypeResource,
	}
}

// ListRecords implements directory.Service
func (s *Service) ListRecords(recordType directory.RecordType) ([]directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := s.records[recordType]
	records := make([]directory.Record, 0, len(byName))
	for _, rec := range byName {
		records = append(records, *rec)
	}
	return records, nil
}

// RecordWithShortName implements directory.Service
func (s *Service) RecordWithShortName(recordType directory.RecordType, shortName string) (*directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordType][shortName]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// RecordWithUID implements directory.Service
func (s *Service) RecordWithUID(uid string) (*directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byUID[uid]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// RecordWithCalendarUserAddress implements directory.Service
func (s *Service) RecordWithCalendarUserAddress(address string) (*directory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, byName := range s.records {
		for _, rec := range byName {
			for _, addr := range rec.CalendarUserAddresses {
				if addr == address {
					copied := *rec
					return &copied, nil
				}
			}
		}
	}
	return nil, nil
}
