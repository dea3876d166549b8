package timesupplier

import (
	"time"

	"github.com/woutdenolf/coilmq/shared/workgroup"
)

var (
	cachedTime time.Time
)

const (
	ResolutionInMillis = 30
)

func init() {
	workgroup.WithFailOver().Run(func() bool {
		ticker := time.NewTicker(ResolutionInMillis * time.Millisecond)
		ch := ticker.C
		for {
			cachedTime = <-ch
		}
	})
	cachedTime = time.Now() // initial value to cover go sched delay of the timer task
}

// CachedTime returns a low resolution wall clock reading. Use it on hot paths
// where a time.Now() call per message would be wasteful.
func CachedTime() time.Time {
	return cachedTime
}
