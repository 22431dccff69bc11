package workers

import (
	"context"
	"log/slog"
	"time"
)

type Pruner interface {
	Prune() int
}

// RevocationPruner periodically forgets revoked tokens that expired anyway.
type RevocationPruner struct {
	pruner   Pruner
	interval time.Duration
	log      *slog.Logger
}

func NewRevocationPruner(pruner Pruner, interval time.Duration, log *slog.Logger) *RevocationPruner {
	return &RevocationPruner{pruner: pruner, interval: interval, log: log}
}

func (w *RevocationPruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.pruner.Prune(); n > 0 {
				w.log.Debug("Revoked tokens pruned", "count", n)
			}
		}
	}
}
