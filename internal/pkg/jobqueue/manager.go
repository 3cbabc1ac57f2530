package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/luminapay/schoolpay/app/repository"
)

const archiveBackfillBatch = 200

// ManagerConfig holds the schedules of the periodic tasks.
type ManagerConfig struct {
	// OrphanSweep is a cron spec, e.g. "@every 5m". Empty disables the sweep.
	OrphanSweep string
	// ArchiveBackfill is a cron spec for re-enqueuing unarchived payloads.
	// Empty disables the backfill.
	ArchiveBackfill string
	TaskTimeout     time.Duration
}

// Manager manages the job queue and the scheduled background tasks
type Manager struct {
	queue   *Queue
	sweeper *OrphanSweeper
	logs    repository.WebhookLogRepository
	cfg     ManagerConfig
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewManager wires the queue with its periodic tasks. sweeper and logs may be
// nil to disable the related task.
func NewManager(queue *Queue, sweeper *OrphanSweeper, logs repository.WebhookLogRepository, cfg ManagerConfig) *Manager {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = time.Minute
	}
	return &Manager{
		queue:   queue,
		sweeper: sweeper,
		logs:    logs,
		cfg:     cfg,
	}
}

// Start starts the job queue and the scheduler
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	logger := cron.PrintfLogger(log)
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	if m.sweeper != nil && m.cfg.OrphanSweep != "" {
		if _, err := c.AddFunc(m.cfg.OrphanSweep, m.runOrphanSweep); err != nil {
			return fmt.Errorf("invalid orphan sweep schedule %q: %w", m.cfg.OrphanSweep, err)
		}
	}
	if m.logs != nil && m.queue.processors.Archiver != nil && m.cfg.ArchiveBackfill != "" {
		if _, err := c.AddFunc(m.cfg.ArchiveBackfill, m.runArchiveBackfill); err != nil {
			return fmt.Errorf("invalid archive backfill schedule %q: %w", m.cfg.ArchiveBackfill, err)
		}
	}

	m.queue.Start()
	c.Start()
	m.cron = c
	m.running = true
	log.Infof("manager started with %d scheduled tasks", len(c.Entries()))
	return nil
}

// Stop stops the scheduler, waits for running tasks and stops the queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("stopping job queue and scheduled tasks...")
	<-m.cron.Stop().Done()
	m.cron = nil
	m.queue.Stop()
	m.running = false
	log.Info("manager stopped")
}

// RunOrphanSweepOnce exposes a manual trigger for a single sweep.
func (m *Manager) RunOrphanSweepOnce(ctx context.Context) (int, error) {
	if m.sweeper == nil {
		return 0, nil
	}
	return m.sweeper.SweepOnce(ctx)
}

func (m *Manager) runOrphanSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TaskTimeout)
	defer cancel()

	n, err := m.RunOrphanSweepOnce(ctx)
	if err != nil {
		log.Errorf("orphan sweep error: %v", err)
		return
	}
	if n > 0 {
		log.Infof("orphan sweep marked %d orders as failed", n)
	}
}

// runArchiveBackfill enqueues archive jobs for payloads whose upload never
// happened, e.g. because Redis was down when the webhook arrived.
func (m *Manager) runArchiveBackfill() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TaskTimeout)
	defer cancel()

	logs, err := m.logs.ListUnarchived(ctx, archiveBackfillBatch)
	if err != nil {
		log.Errorf("archive backfill error: %v", err)
		return
	}
	for _, entry := range logs {
		if err := m.queue.EnqueueArchive(ctx, entry.ID); err != nil {
			log.Errorf("archive backfill enqueue error for log %d: %v", entry.ID, err)
			return
		}
	}
}
