// Package scheduler runs the periodic moderation jobs.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"kindred/backend/internal/analysis"
	"kindred/backend/internal/storage"

	"github.com/robfig/cron/v3"
)

// JournalScanner is satisfied by admin.Console.
type JournalScanner interface {
	ScanJournal(ctx context.Context, since time.Time) ([]analysis.Flag, error)
}

// Scheduler owns the cron runner and the state carried between runs.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	scanner JournalScanner
	storage storage.Storage
	now     func() time.Time

	mu       sync.Mutex
	lastScan time.Time
}

func New(scanner JournalScanner, s storage.Storage) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	now := func() time.Time { return time.Now().UTC() }
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		scanner:  scanner,
		storage:  s,
		now:      now,
		lastScan: now(),
	}
}

// Start registers both jobs and starts the runner.
func (s *Scheduler) Start(scanSpec, sweepSpec string) error {
	if _, err := s.cron.AddFunc(scanSpec, func() {
		if err := s.ScanJournal(s.ctx); err != nil {
			log.Printf("ERROR: Journal scan failed: %v", err)
		}
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		if err := s.SweepBans(s.ctx); err != nil {
			log.Printf("ERROR: Ban sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("INFO: Scheduler started (journal scan %q, ban sweep %q)", scanSpec, sweepSpec)
	return nil
}

// ScanJournal scans entries written since the previous successful run.
// On failure the window is kept so the next run covers it again.
func (s *Scheduler) ScanJournal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	flags, err := s.scanner.ScanJournal(ctx, s.lastScan)
	if err != nil {
		return err
	}
	s.lastScan = started
	if len(flags) > 0 {
		log.Printf("INFO: Journal scan raised %d flags", len(flags))
	}
	return nil
}

// SweepBans drops Ban records whose suspension has expired.
func (s *Scheduler) SweepBans(ctx context.Context) error {
	n, err := s.storage.DeleteExpiredBans(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("INFO: Swept %d expired bans", n)
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("INFO: Scheduler stopped")
}
