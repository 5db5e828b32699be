package fractal

import (
	"context"
	"log"
	"sync"

	"fractalscan/domain/chat"
	domain "fractalscan/domain/fractal"
	"fractalscan/internal/errors"

	"golang.org/x/sync/semaphore"
)

// DefaultBatchConcurrency bounds a batch when no limit is configured.
const DefaultBatchConcurrency = 4

// Conversation is one independent input of a batch.
type Conversation struct {
	ID       string
	Messages []chat.Message
	Mode     chat.BranchingMode
}

// BatchItem is the outcome for one conversation. Exactly one of Scan and Err is set.
type BatchItem struct {
	ID   string
	Scan *domain.Scan
	Err  error
}

// BatchScanner scans conversations concurrently with a weighted semaphore.
type BatchScanner struct {
	scanner *Scanner
	sem     *semaphore.Weighted
	limit   int64
}

// NewBatchScanner creates a batch scanner allowing at most concurrency scans at once
func NewBatchScanner(scanner *Scanner, concurrency int) *BatchScanner {
	if scanner == nil {
		scanner = NewScanner()
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchScanner{
		scanner: scanner,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		limit:   int64(concurrency),
	}
}

// Limit returns the configured concurrency.
func (b *BatchScanner) Limit() int { return int(b.limit) }

// ScanAll scans every conversation and returns results in input order. A
// failing conversation does not abort the others. Once ctx is done, the
// remaining conversations report ctx.Err().
func (b *BatchScanner) ScanAll(ctx context.Context, convs []Conversation) []BatchItem {
	items := make([]BatchItem, len(convs))
	var wg sync.WaitGroup

	for i, conv := range convs {
		items[i].ID = conv.ID

		if err := ctx.Err(); err != nil {
			items[i].Err = errors.Wrapf(err, "conversation %q not scanned", conv.ID)
			continue
		}
		if err := b.sem.Acquire(ctx, 1); err != nil {
			items[i].Err = errors.Wrapf(err, "conversation %q not scanned", conv.ID)
			continue
		}

		wg.Add(1)
		go func(i int, conv Conversation) {
			defer wg.Done()
			defer b.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[BatchScanner] panic scanning %q: %v", conv.ID, r)
					items[i].Err = errors.InternalError("scan panicked")
				}
			}()

			scan, err := b.scanner.Scan(conv.Messages, conv.Mode)
			if err != nil {
				items[i].Err = err
				return
			}
			items[i].Scan = scan
		}(i, conv)
	}

	wg.Wait()
	return items
}
