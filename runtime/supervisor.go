package runtime

import (
	"chatline/contract"
	chaterrors "chatline/errors"
	"context"
	"log/slog"
	"sync"
	"time"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor runs workers in their own goroutines, restarts the ones that
// crash or panic, and returns once all of them are done.
type Supervisor struct {
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
	restart time.Duration
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log, restart: waitTimeBeforeRestart}
}

func (s *Supervisor) Add(workers ...contract.Worker) *Supervisor {
	s.workers = append(s.workers, workers...)
	return s
}

// Run blocks until every worker returned. Cancelling ctx or calling Stop
// cancels the workers.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	for _, worker := range s.workers {
		s.start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.WorkerName(worker)

	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				s.log.Info("Worker stopping", "name", name)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panicked", "name", name, "panic", r)
						err = chaterrors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			switch {
			case err == nil:
				s.log.Info("Worker finished", "name", name)
				return
			case ctx.Err() != nil:
				s.log.Info("Worker stopped", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restart):
			}
		}
	}()
}

func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
