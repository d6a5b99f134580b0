package workers

import (
	"context"

	"github.com/yoockh/livecoach/internal/utils"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-heavy jobs (ffmpeg) run at once across all
// live connections. A nil *Pool runs jobs inline.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do waits for a free slot, then runs fn on the caller's goroutine.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	const op = "Pool.Do"

	if p == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return utils.E(utils.CodeTimeout, op, "no worker slot", err)
	}
	defer p.sem.Release(1)
	return fn()
}
