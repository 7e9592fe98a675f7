package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper is the part of the session registry the job drives.
type Sweeper interface {
	Sweep(ctx context.Context, idle, retention time.Duration) (expired, evicted int)
}

// IdleSessionJob finalizes sessions that stopped sending observations
// without disconnecting, and evicts ended sessions from memory once their
// retention window has passed. Reports are already persisted by then.
type IdleSessionJob struct {
	sessions  Sweeper
	logger    *log.Logger
	interval  time.Duration
	idle      time.Duration
	retention time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewIdleSessionJob creates the job. idle == 0 disables idle expiry;
// retention == 0 keeps ended sessions until shutdown.
func NewIdleSessionJob(s Sweeper, logger *log.Logger, interval, idle, retention time.Duration) *IdleSessionJob {
	if interval == 0 {
		interval = 1 * time.Minute
	}
	return &IdleSessionJob{
		sessions:  s,
		logger:    logger,
		interval:  interval,
		idle:      idle,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background job.
func (j *IdleSessionJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("IdleSessionJob: started (interval=%v, idle=%v, retention=%v)", j.interval, j.idle, j.retention)
}

// Stop gracefully stops the background job.
func (j *IdleSessionJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("IdleSessionJob: stopped")
}

func (j *IdleSessionJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.processAll()
		case <-j.stopCh:
			return
		}
	}
}

func (j *IdleSessionJob) processAll() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	expired, evicted := j.sessions.Sweep(ctx, j.idle, j.retention)
	if expired > 0 || evicted > 0 {
		j.logger.Printf("IdleSessionJob: expired %d idle sessions, evicted %d ended sessions", expired, evicted)
	}
}
