package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stillpoint-app/stillmem/pkg/bus"
)

// Config configures the memory subsystem.
type Config struct {
	Workspace      string
	RecallLimit    int
	WorkingSetCap  int
	DedupeCap      int
	DedupeOverlap  float64
	MinContentLen  int
	MaxPerTurn     int
	DefaultConfide int

	// Notifier, when set, receives a notification for every mutation that
	// lands in the audit log. Publishing is best-effort and bounded.
	Notifier *bus.NotificationBus
}

// Service is the orchestrator for memory capture, retrieval, retention and
// the admin console. Every operation runs synchronously within the request
// that triggered it; the store's single-row atomicity is the only locking.
type Service struct {
	cfg   Config
	store *SQLiteStore

	closeOnce sync.Once
	closeErr  error
}

func applyDefaults(cfg Config) Config {
	if cfg.RecallLimit <= 0 {
		cfg.RecallLimit = 8
	}
	if cfg.WorkingSetCap <= 0 {
		cfg.WorkingSetCap = 100
	}
	if cfg.DedupeCap <= 0 {
		cfg.DedupeCap = 5
	}
	if cfg.DedupeOverlap <= 0 {
		cfg.DedupeOverlap = 0.70
	}
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = 12
	}
	if cfg.MaxPerTurn <= 0 {
		cfg.MaxPerTurn = maxCandidatesPerTurn
	}
	if cfg.DefaultConfide <= 0 {
		cfg.DefaultConfide = 60
	}
	return cfg
}

func NewService(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Workspace) == "" {
		return nil, fmt.Errorf("memory workspace is required")
	}
	cfg = applyDefaults(cfg)

	dbPath := filepath.Join(cfg.Workspace, "state", "memory.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, store: store}, nil
}

// NewServiceWithStore wires an already-open store, mainly for tests.
func NewServiceWithStore(cfg Config, store *SQLiteStore) *Service {
	return &Service{cfg: applyDefaults(cfg), store: store}
}

func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}

// Store exposes the underlying store for read-only operational queries.
func (s *Service) Store() *SQLiteStore { return s.store }

// CaptureTurn runs the extractor over a chat turn and persists up to
// MaxPerTurn candidates for the owner. It never fails the chat path: write
// errors are returned, but empty or gated candidates are silent no-ops.
func (s *Service) CaptureTurn(ctx context.Context, ownerID, userMessage, assistantMessage string) ([]string, error) {
	candidates := extractCandidates(userMessage, assistantMessage, s.cfg.MaxPerTurn)
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id, err := s.Memorize(ctx, MemorizeInput{
			OwnerID:    ownerID,
			Scope:      ScopeUser,
			Type:       c.Type,
			Content:    c.Content,
			Tags:       c.Tags,
			Confidence: c.Confidence,
			Source:     SourceChat,
		})
		if err != nil {
			return ids, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.CountStats(ctx, nowMS())
}

// logEvent is the single choke point for the audit log: every mutation
// appends exactly one event here, then fans it out to the notifier.
func (s *Service) logEvent(ctx context.Context, ev MemoryEvent) error {
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return err
	}
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Publish(bus.Notification{
			UserID: ev.UserID,
			Action: string(ev.Action),
			ItemID: ev.Details["item_id"],
			AtMS:   nowMS(),
		})
	}
	return nil
}
