package app

import (
	"context"
	"time"

	"fractalscan/domain/chat"
	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal"
	"fractalscan/internal/errors"
	scanning "fractalscan/internal/fractal"
	"fractalscan/internal/metrics"
	"fractalscan/ports"
)

// ScanService runs scans and keeps their history in an optional ledger
type ScanService struct {
	scanner *scanning.Scanner
	batch   *scanning.BatchScanner
	ledger  ports.ScanLedger // nil when history is disabled
	logger  *internal.Logger
	now     func() time.Time

	listeners []func(*fractal.Record)
}

// ScanRequest is one conversation to scan
type ScanRequest struct {
	ConversationID core.ConversationID
	Messages       []chat.Message
	Mode           chat.BranchingMode
}

// BatchResult is the per-conversation outcome of ScanBatch
type BatchResult struct {
	ConversationID core.ConversationID
	Record         *fractal.Record
	Err            error
}

// NewScanService creates a scan service. ledger may be nil.
func NewScanService(scanner *scanning.Scanner, batch *scanning.BatchScanner, ledger ports.ScanLedger, logger *internal.Logger) *ScanService {
	if scanner == nil {
		scanner = scanning.NewScanner()
	}
	if batch == nil {
		batch = scanning.NewBatchScanner(scanner, scanning.DefaultBatchConcurrency)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ScanService{
		scanner: scanner,
		batch:   batch,
		ledger:  ledger,
		logger:  logger.With("scan_service"),
		now:     time.Now,
	}
}

// HasLedger reports whether scans are being recorded
func (s *ScanService) HasLedger() bool {
	return s.ledger != nil
}

// LedgerDriver names the ledger backend, or "none"
func (s *ScanService) LedgerDriver() string {
	if s.ledger == nil {
		return "none"
	}
	return s.ledger.Driver()
}

// OnRecord registers fn to receive every new record. Register before serving.
func (s *ScanService) OnRecord(fn func(*fractal.Record)) {
	s.listeners = append(s.listeners, fn)
}

// Scan computes and records one scan
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*fractal.Record, error) {
	start := s.now()

	scan, err := s.scanner.Scan(req.Messages, req.Mode)
	if err != nil {
		s.observeFailure(req, err)
		return nil, err
	}

	record := s.newRecord(req, scan)
	s.observeSuccess(record, s.now().Sub(start))
	s.append(ctx, record)
	return record, nil
}

// ScanBatch scans conversations concurrently and records each success.
// Results are returned in request order.
func (s *ScanService) ScanBatch(ctx context.Context, reqs []ScanRequest) []BatchResult {
	convs := make([]scanning.Conversation, len(reqs))
	for i, req := range reqs {
		convs[i] = scanning.Conversation{ID: req.ConversationID.String(), Messages: req.Messages, Mode: req.Mode}
	}

	start := s.now()
	items := s.batch.ScanAll(ctx, convs)
	s.logger.Debug("batch of %d conversations scanned in %s", len(reqs), s.now().Sub(start))

	results := make([]BatchResult, len(items))
	for i, item := range items {
		results[i].ConversationID = reqs[i].ConversationID
		if item.Err != nil {
			s.observeFailure(reqs[i], item.Err)
			results[i].Err = item.Err
			continue
		}

		record := s.newRecord(reqs[i], item.Scan)
		s.observeSuccess(record, 0)
		s.append(ctx, record)
		results[i].Record = record
	}
	return results
}

// Get loads a recorded scan
func (s *ScanService) Get(ctx context.Context, id core.ScanID) (*fractal.Record, error) {
	if s.ledger == nil {
		return nil, errors.NotFound("scan " + id.String())
	}

	record, err := s.ledger.Get(ctx, id)
	if err != nil && errors.GetCode(err) != errors.CodeNotFound {
		metrics.LedgerErrorsTotal.WithLabelValues(s.ledger.Driver(), "get").Inc()
		s.logger.Error("ledger get %s failed: %v", id, err)
	}
	return record, err
}

// List returns recent scans, newest first. Without a ledger the list is empty.
func (s *ScanService) List(ctx context.Context, limit int) ([]*fractal.Record, error) {
	if s.ledger == nil {
		return []*fractal.Record{}, nil
	}

	records, err := s.ledger.List(ctx, limit)
	if err != nil {
		metrics.LedgerErrorsTotal.WithLabelValues(s.ledger.Driver(), "list").Inc()
		s.logger.Error("ledger list failed: %v", err)
		return nil, err
	}
	return records, nil
}

func (s *ScanService) newRecord(req ScanRequest, scan *fractal.Scan) *fractal.Record {
	return &fractal.Record{
		ID:             core.NewScanID(),
		ConversationID: req.ConversationID,
		Fingerprint:    chat.Fingerprint(req.Messages),
		CreatedAt:      s.now().UnixMilli(),
		Scan:           *scan,
	}
}

// append records the scan; a ledger failure never fails the scan itself
func (s *ScanService) append(ctx context.Context, record *fractal.Record) {
	for _, fn := range s.listeners {
		fn(record)
	}
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(ctx, record); err != nil {
		metrics.LedgerErrorsTotal.WithLabelValues(s.ledger.Driver(), "append").Inc()
		s.logger.Error("ledger append %s failed: %v", record.ID, err)
	}
}

func (s *ScanService) observeSuccess(record *fractal.Record, elapsed time.Duration) {
	metrics.ScansTotal.WithLabelValues(record.Mode.String(), "ok").Inc()
	metrics.MessagesPerScan.Observe(float64(record.Summary.MessageCount))
	if elapsed > 0 {
		metrics.ScanDuration.Observe(elapsed.Seconds())
	}
	if record.Summary.Alert {
		metrics.AlertsTotal.Inc()
		s.logger.Warn("scan %s alert: fractal dimension %.2f", record.ID, record.Summary.FractalDimension)
	}
	s.logger.Debug("scan %s: %d messages, mode %s, influence %.2f, fingerprint %s",
		record.ID, record.Summary.MessageCount, record.Mode, record.InfluenceScore, record.Fingerprint.Short())
}

func (s *ScanService) observeFailure(req ScanRequest, err error) {
	mode := req.Mode.Resolve(req.Messages)
	metrics.ScansTotal.WithLabelValues(mode.String(), errors.GetCode(err)).Inc()
	s.logger.Debug("scan of %q rejected: %v", req.ConversationID, err)
}
