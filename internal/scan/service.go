package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeng/barscan/internal/enrichment"
)

var (
	// ErrRecordNotFound is returned when no record has the requested ID
	ErrRecordNotFound = errors.New("record not found")
	// ErrEmptyCode is returned when a decode event carries no text
	ErrEmptyCode = errors.New("decoded text is empty")
)

// Enricher identifies products; it must always return a usable value
type Enricher interface {
	Identify(ctx context.Context, code, format string) enrichment.ProductInfo
}

// Observer receives a snapshot of the history after every committed change
type Observer func(history []Record)

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config tunes the Service
type Config struct {
	// EnrichTimeout settles a record with the fallback product when the
	// backend has not answered in time. Zero waits forever.
	EnrichTimeout time.Duration
}

// task is an in-flight identification
type task struct {
	id     string
	code   string
	format string
}

// Service owns the scan history and coordinates identification
type Service struct {
	enricher    Enricher
	idGenerator IDGenerator
	timeSource  TimeSource
	metrics     *Metrics
	cfg         Config

	mu        sync.Mutex
	history   []Record // Newest first
	focusedID string
	tasks     map[string]*task
	version   uint64
	active    int           // Tasks not yet settled and delivered to observers
	settled   chan struct{} // Closed and replaced whenever a task finishes

	notifyMu  sync.Mutex
	notified  uint64
	observers []Observer
}

// NewService creates a new Service with default ID generator and time source
func NewService(enricher Enricher, history []Record, cfg Config, metrics *Metrics) *Service {
	return NewServiceWithDeps(enricher, history, cfg, metrics, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(enricher Enricher, history []Record, cfg Config, metrics *Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	s := &Service{
		enricher:    enricher,
		idGenerator: idGen,
		timeSource:  timeSrc,
		metrics:     metrics,
		cfg:         cfg,
		history:     cloneAll(history),
		tasks:       make(map[string]*task),
		settled:     make(chan struct{}),
	}
	s.metrics.setState(0, len(s.history))
	return s
}

// Subscribe registers an observer for history changes
func (s *Service) Subscribe(observer Observer) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observers = append(s.observers, observer)
}

// HandleDecoded records a decoded barcode and starts identifying it in the
// background. The new record is returned in its loading state.
func (s *Service) HandleDecoded(text, format string) (Record, error) {
	if text == "" {
		return Record{}, ErrEmptyCode
	}
	if format == "" {
		format = UnknownFormat
	}

	record := Record{
		ID:          s.idGenerator.Generate(),
		DecodedText: text,
		Format:      format,
		Timestamp:   s.timeSource.Now().UnixMilli(),
		Loading:     true,
	}

	s.mu.Lock()
	s.history = append([]Record{record}, s.history...)
	s.focusedID = record.ID
	t := s.trackLocked(record)
	snapshot, version := s.commitLocked()
	s.mu.Unlock()

	slog.Info("Scan recorded", "id", record.ID, "format", format)
	s.metrics.incScans(format)
	s.notify(snapshot, version)

	go s.enrich(t)
	return record, nil
}

// ResumePending restarts identification for records that were persisted
// while still loading. It returns the number of records resumed.
func (s *Service) ResumePending() int {
	s.mu.Lock()
	var resumed []*task
	for _, r := range s.history {
		if !r.Loading {
			continue
		}
		if _, ok := s.tasks[r.ID]; ok {
			continue
		}
		resumed = append(resumed, s.trackLocked(r))
	}
	s.metrics.setState(len(s.tasks), len(s.history))
	s.mu.Unlock()

	for _, t := range resumed {
		go s.enrich(t)
	}
	if len(resumed) > 0 {
		slog.Info("Resuming product lookups", "count", len(resumed))
	}
	return len(resumed)
}

// trackLocked registers an in-flight identification; s.mu must be held
func (s *Service) trackLocked(r Record) *task {
	t := &task{id: r.ID, code: r.DecodedText, format: r.Format}
	s.tasks[r.ID] = t
	s.active++
	return t
}

// enrich runs one identification and settles its record
func (s *Service) enrich(t *task) {
	ctx := context.Background()
	if s.cfg.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EnrichTimeout)
		defer cancel()
	}

	result := make(chan enrichment.ProductInfo, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Product lookup panicked", "id", t.id, "panic", r)
				result <- enrichment.Fallback()
			}
		}()
		result <- s.enricher.Identify(ctx, t.code, t.format)
	}()

	var info enrichment.ProductInfo
	select {
	case info = <-result:
	case <-ctx.Done():
		slog.Warn("Product lookup timed out", "id", t.id, "timeout", s.cfg.EnrichTimeout)
		s.metrics.incTimeouts()
		info = enrichment.Fallback()
	}

	s.settle(t.id, info)
}

// settle patches the record with the given ID exactly once
func (s *Service) settle(id string, info enrichment.ProductInfo) {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, id)

	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i].ProductInfo = &info
			s.history[i].Loading = false
			break
		}
	}
	snapshot, version := s.commitLocked()
	s.mu.Unlock()

	slog.Info("Scan identified", "id", id, "name", info.Name)
	s.notify(snapshot, version)

	s.mu.Lock()
	s.active--
	close(s.settled)
	s.settled = make(chan struct{})
	s.mu.Unlock()
}

// commitLocked bumps the version and snapshots the history; s.mu must be held
func (s *Service) commitLocked() ([]Record, uint64) {
	s.version++
	s.metrics.setState(len(s.tasks), len(s.history))
	return cloneAll(s.history), s.version
}

// notify delivers a snapshot to the observers unless a newer one already went out
func (s *Service) notify(snapshot []Record, version uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.notified {
		return
	}
	s.notified = version
	for _, observer := range s.observers {
		observer(snapshot)
	}
}

// History returns a copy of the history, newest first
func (s *Service) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.history)
}

// Get returns the record with the given ID
func (s *Service) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Find(s.history, id)
}

// Focus selects a record for the detail view
func (s *Service) Focus(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.focusedID = id
	s.mu.Unlock()
	return nil
}

// ClearFocus closes the detail view
func (s *Service) ClearFocus() {
	s.mu.Lock()
	s.focusedID = ""
	s.mu.Unlock()
}

// Focused returns the record selected for the detail view, reflecting any
// identification that has settled since it was selected
func (s *Service) Focused() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focusedID == "" {
		return Record{}, false
	}
	r, err := Find(s.history, s.focusedID)
	return r, err == nil
}

// Pending returns the number of identifications still in flight
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every in-flight identification has settled or ctx ends
func (s *Service) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		pending := s.active
		settled := s.settled
		s.mu.Unlock()
		if pending == 0 {
			return nil
		}

		select {
		case <-settled:
		case <-ctx.Done():
			return fmt.Errorf("waiting for product lookups: %w", ctx.Err())
		}
	}
}
