package returns

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the in-memory Store used by tests.
type MemStore struct {
	mu          sync.Mutex
	assignments map[string]Assignment // by barcode
	archived    map[string]bool       // by barcode
	adjustments []Adjustment
}

func NewMemStore() *MemStore {
	return &MemStore{
		assignments: make(map[string]Assignment),
		archived:    make(map[string]bool),
	}
}

func (s *MemStore) InsertAssignment(_ context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.assignments[a.BarcodeID]; ok {
		if prev.BookingID != a.BookingID {
			return fmt.Errorf("%w: %s", ErrBarcodeTaken, a.BarcodeID)
		}
		return nil
	}
	s.assignments[a.BarcodeID] = a
	return nil
}

func (s *MemStore) GetAssignment(_ context.Context, barcodeID string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[barcodeID]
	if !ok || s.archived[barcodeID] {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemStore) UpdateAssignmentStatus(_ context.Context, barcodeID string, status AssignmentStatus, returnedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[barcodeID]
	if !ok || s.archived[barcodeID] {
		return ErrNotFound
	}
	a.Status = status
	if returnedAt != nil {
		a.ReturnedAt = returnedAt
	}
	s.assignments[barcodeID] = a
	return nil
}

func (s *MemStore) ListAssignments(_ context.Context, bookingID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for id, a := range s.assignments {
		if a.BookingID == bookingID && !s.archived[id] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BarcodeID < out[j].BarcodeID })
	return out, nil
}

func (s *MemStore) ArchiveAssignments(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assignments {
		if a.BookingID == bookingID {
			s.archived[id] = true
		}
	}
	return nil
}

func (s *MemStore) InsertAdjustment(_ context.Context, adj Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}
	s.adjustments = append(s.adjustments, adj)
	return nil
}

func (s *MemStore) ListAdjustments(_ context.Context, bookingID string) ([]Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Adjustment
	for _, a := range s.adjustments {
		if a.BookingID == bookingID {
			out = append(out, a)
		}
	}
	return out, nil
}
