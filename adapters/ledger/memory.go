// Package ledger holds the scan history backends: an in-process ring buffer,
// a SQL table (postgres or sqlite through sqlx) and Redis.
package ledger

import (
	"context"
	"sync"

	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"
	"fractalscan/ports"
)

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 50

// MemoryLedger keeps the most recent records in a fixed-size ring.
type MemoryLedger struct {
	mu       sync.RWMutex
	records  map[core.ScanID]*fractal.Record
	order    []core.ScanID // ring of ids, oldest overwritten first
	next     int
	capacity int
}

var _ ports.ScanLedger = (*MemoryLedger)(nil)

// NewMemoryLedger creates a ledger holding at most capacity records
func NewMemoryLedger(capacity int) *MemoryLedger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryLedger{
		records:  make(map[core.ScanID]*fractal.Record, capacity),
		order:    make([]core.ScanID, 0, capacity),
		capacity: capacity,
	}
}

// Append stores a copy of the record, evicting the oldest when full
func (l *MemoryLedger) Append(ctx context.Context, record *fractal.Record) error {
	if record == nil || record.ID.String() == "" {
		return errors.ValidationError("record must have an ID")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[record.ID]; exists {
		l.records[record.ID] = cloneRecord(record)
		return nil
	}

	if len(l.order) < l.capacity {
		l.order = append(l.order, record.ID)
	} else {
		delete(l.records, l.order[l.next])
		l.order[l.next] = record.ID
		l.next = (l.next + 1) % l.capacity
	}
	l.records[record.ID] = cloneRecord(record)
	return nil
}

// Get returns a copy of the record
func (l *MemoryLedger) Get(ctx context.Context, id core.ScanID) (*fractal.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, errors.NotFound("scan " + id.String())
	}
	return cloneRecord(rec), nil
}

// List returns the newest records first
func (l *MemoryLedger) List(ctx context.Context, limit int) ([]*fractal.Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.order)
	out := make([]*fractal.Record, 0, min(limit, n))
	for i := 0; i < n && len(out) < limit; i++ {
		// newest is just before next once the ring has wrapped
		idx := (l.next - 1 - i + 2*n) % n
		if len(l.order) < l.capacity {
			idx = n - 1 - i
		}
		out = append(out, cloneRecord(l.records[l.order[idx]]))
	}
	return out, nil
}

// Len returns the number of stored records
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *MemoryLedger) Driver() string { return "memory" }

func (l *MemoryLedger) Ping(ctx context.Context) error { return nil }

func (l *MemoryLedger) Close() error { return nil }

func cloneRecord(r *fractal.Record) *fractal.Record {
	c := *r
	c.ChaosScores = append([]float64(nil), r.ChaosScores...)
	c.AlignmentFlags = append([]bool(nil), r.AlignmentFlags...)
	if r.Summary.SenderInfluence != nil {
		c.Summary.SenderInfluence = make(map[string]float64, len(r.Summary.SenderInfluence))
		for k, v := range r.Summary.SenderInfluence {
			c.Summary.SenderInfluence[k] = v
		}
	}
	return &c
}
