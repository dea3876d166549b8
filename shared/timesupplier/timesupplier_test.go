package timesupplier

import (
	"testing"
	"time"
)

func TestCachedTimeStaysClose(t *testing.T) {
	for i := 0; i < 3; i++ {
		time.Sleep(3 * ResolutionInMillis * time.Millisecond)

		cached := CachedTime()
		now := time.Now()
		gap := now.Sub(cached)
		if gap < 0 {
			gap = -gap
		}
		t.Log("actual time gap:", gap.Milliseconds(), "ms")
		if gap > time.Second {
			t.Fatal("cached time drifted too far from wall clock:", gap)
		}
	}
}
