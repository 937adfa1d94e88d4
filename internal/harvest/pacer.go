package harvest

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sells-group/fin-harvest/internal/resilience"
)

// Delay is a politeness interval drawn uniformly from [Min, Max].
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Pacer produces politeness pauses.
type Pacer interface {
	Pause(ctx context.Context, d Delay) error
}

// RandomPacer sleeps for a random duration within the delay bounds.
type RandomPacer struct{}

// Pause implements Pacer.
func (RandomPacer) Pause(ctx context.Context, d Delay) error {
	wait := d.Min
	if d.Max > d.Min {
		wait += rand.N(d.Max - d.Min)
	}
	return resilience.Sleep(ctx, wait)
}
