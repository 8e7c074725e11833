// Package scheduler drives periodic position tracking for every active
// user: it re-executes each user's historical query combinations, persists
// the resulting snapshots and forwards them to the reporting sink.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellermetrics/position-tracker/internal/catalog"
	"github.com/sellermetrics/position-tracker/internal/combinator"
	"github.com/sellermetrics/position-tracker/internal/metrics"
	"github.com/sellermetrics/position-tracker/internal/report"
)

// ErrAlreadyRunning is returned when a tracking run for the user is
// already in flight.
var ErrAlreadyRunning = errors.New("tracking run already in flight for user")

// Config tunes the scheduler cadence and batching.
type Config struct {
	CronSpec        string
	BatchSize       int
	InterBatchDelay time.Duration
	EventTopic      string
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		CronSpec:        "@every 4h",
		BatchSize:       5,
		InterBatchDelay: 10 * time.Second,
	}
}

func (c Config) normalized() Config {
	if c.CronSpec == "" {
		c.CronSpec = "@every 4h"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.InterBatchDelay < 0 {
		c.InterBatchDelay = 0
	}
	return c
}

// Service owns the per-user run guard and the cron entry. Construct one at
// process start and share the handle; the guard set is the only mutable
// state the engine keeps between requests.
type Service struct {
	cfg        Config
	engine     *catalog.Engine
	combos     *combinator.Combinator
	users      catalog.UserStore
	snapshots  catalog.SnapshotStore
	exporter   *report.Exporter
	publisher  catalog.Publisher
	clock      catalog.Clock
	logger     *zap.Logger
	cron       *cron.Cron

	mu      sync.Mutex
	running map[string]struct{}
}

// New constructs the scheduler service. The publisher may be nil; snapshot
// events are then not emitted.
func New(
	cfg Config,
	engine *catalog.Engine,
	combos *combinator.Combinator,
	users catalog.UserStore,
	snapshots catalog.SnapshotStore,
	exporter *report.Exporter,
	publisher catalog.Publisher,
	clock catalog.Clock,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = catalog.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg.normalized(),
		engine:    engine,
		combos:    combos,
		users:     users,
		snapshots: snapshots,
		exporter:  exporter,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		running:   make(map[string]struct{}),
	}
}

// Start registers the cron entry and begins ticking.
func (s *Service) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		if err := s.RunAll(ctx); err != nil {
			s.logger.Error("scheduled tracking tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register cron entry %q: %w", s.cfg.CronSpec, err)
	}
	s.cron.Start()
	s.logger.Info("tracking scheduler started", zap.String("cadence", s.cfg.CronSpec))
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunAll executes one tracking tick: every non-blocked user, in fixed-size
// batches with an inter-batch delay so the catalog and the sink see a
// bounded request rate. One user's failure never blocks the others.
func (s *Service) RunAll(ctx context.Context) error {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("enumerate users: %w", err)
	}
	s.logger.Info("tracking tick started", zap.Int("users", len(users)))

	for start := 0; start < len(users); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.InterBatchDelay):
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(users) {
			end = len(users)
		}

		var wg sync.WaitGroup
		for _, user := range users[start:end] {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				switch err := s.RunUser(ctx, userID); {
				case errors.Is(err, ErrAlreadyRunning):
					s.logger.Warn("skipping user with run in flight", zap.String("user_id", userID))
					metrics.IncTrackingRun("skipped")
				case err != nil:
					s.logger.Error("tracking run failed",
						zap.String("user_id", userID),
						zap.Error(err),
					)
					metrics.IncTrackingRun("error")
				default:
					metrics.IncTrackingRun("ok")
				}
			}(user.ID)
		}
		wg.Wait()
	}
	return nil
}

// RunUser executes one scheduler-initiated run for a single user. The
// Idle→Running transition is guarded; a second call for the same user
// returns ErrAlreadyRunning until the first finishes.
func (s *Service) RunUser(ctx context.Context, userID string) error {
	if err := s.acquire(userID); err != nil {
		return err
	}
	defer s.release(userID)

	brand, article, err := s.combos.ForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("derive combinations: %w", err)
	}
	if len(brand) == 0 && len(article) == 0 {
		return nil
	}

	// The user may have been blocked between enumeration and execution.
	blocked, err := s.users.IsBlocked(ctx, userID)
	if err != nil {
		return fmt.Errorf("re-check user: %w", err)
	}
	if blocked {
		s.logger.Info("aborting run for blocked user", zap.String("user_id", userID))
		return nil
	}

	var (
		created   []catalog.Snapshot
		createdMu sync.Mutex
	)
	record := func(snap *catalog.Snapshot) {
		if snap == nil {
			return
		}
		createdMu.Lock()
		created = append(created, *snap)
		createdMu.Unlock()
	}

	// Brand and article sides run concurrently with each other; each side
	// executes its own combinations sequentially.
	var g errgroup.Group
	g.Go(func() error {
		snap, err := s.runMode(ctx, userID, catalog.ModeBrand, brand)
		record(snap)
		return err
	})
	g.Go(func() error {
		snap, err := s.runMode(ctx, userID, catalog.ModeArticle, article)
		record(snap)
		return err
	})
	runErr := g.Wait()

	// Forward only what this run newly created; an export failure is
	// logged by the exporter and must not fail the run, the snapshot is
	// already persisted.
	for _, snap := range created {
		var sinkErr *report.SinkError
		if err := s.exporter.Export(ctx, snap); err != nil && !errors.As(err, &sinkErr) {
			s.logger.Error("snapshot export failed",
				zap.String("snapshot_id", snap.ID),
				zap.Error(err),
			)
		}
		s.publishCreated(ctx, snap)
	}

	if runErr != nil {
		return fmt.Errorf("tracking run for user %s: %w", userID, runErr)
	}
	return nil
}

// runMode executes every combination of one mode and persists the snapshot
// covering all of them. Returns nil when the mode has no combinations.
func (s *Service) runMode(ctx context.Context, userID string, mode catalog.Mode, searches []catalog.Search) (*catalog.Snapshot, error) {
	if len(searches) == 0 {
		return nil, nil
	}

	var (
		matches []catalog.Match
		queries []string
		cities  []string
	)
	for _, search := range searches {
		found, err := s.engine.Execute(ctx, search)
		if err != nil {
			return nil, fmt.Errorf("execute %s search %q: %w", mode, search.Query, err)
		}
		matches = append(matches, found...)
		queries = append(queries, search.Query)
		cities = append(cities, search.City)
	}

	snap := catalog.Snapshot{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		Query:     strings.Join(queries, ";"),
		City:      strings.Join(cities, ";"),
		Matches:   matches,
		CreatedAt: s.clock.Now(),
		AutoQuery: true,
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist %s snapshot: %w", mode, err)
	}
	metrics.IncSnapshotCreated(string(mode), true)
	return &snap, nil
}

// RunSearch executes one user-initiated search, persists the snapshot with
// AutoQuery=false and exports it. It shares the engine but not the per-user
// guard; a manual search may overlap a scheduled run.
func (s *Service) RunSearch(ctx context.Context, userID string, search catalog.Search) (catalog.Snapshot, error) {
	matches, err := s.engine.Execute(ctx, search)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("execute search %q: %w", search.Query, err)
	}

	snap := catalog.Snapshot{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      search.Mode,
		Query:     search.Query,
		City:      search.City,
		Matches:   matches,
		CreatedAt: s.clock.Now(),
		AutoQuery: false,
	}
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("persist snapshot: %w", err)
	}
	metrics.IncSnapshotCreated(string(search.Mode), false)

	var sinkErr *report.SinkError
	if err := s.exporter.Export(ctx, snap); err != nil && !errors.As(err, &sinkErr) {
		s.logger.Error("snapshot export failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.publishCreated(ctx, snap)
	return snap, nil
}

func (s *Service) publishCreated(ctx context.Context, snap catalog.Snapshot) {
	if s.publisher == nil || s.cfg.EventTopic == "" {
		return
	}
	payload := map[string]any{
		"snapshot_id": snap.ID,
		"user_id":     snap.UserID,
		"mode":        string(snap.Mode),
		"matches":     len(snap.Matches),
		"auto_query":  snap.AutoQuery,
		"created_at":  snap.CreatedAt.Format(time.RFC3339),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.EventTopic, payload); err != nil {
		s.logger.Warn("snapshot event publish failed",
			zap.String("user_id", snap.UserID),
			zap.Error(err),
		)
	}
}

func (s *Service) acquire(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, inFlight := s.running[userID]; inFlight {
		return ErrAlreadyRunning
	}
	s.running[userID] = struct{}{}
	metrics.SetActiveUsers(len(s.running))
	return nil
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, userID)
	metrics.SetActiveUsers(len(s.running))
}
