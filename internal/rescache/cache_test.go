package rescache

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fathomsearch/fathom/internal/lane"
)

type fakeClock struct {
	ns atomic.Int64
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.ns.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

func successResult(id lane.ID, n int) lane.Result {
	items := make([]lane.Evidence, n)
	for i := range items {
		items[i] = lane.Evidence{
			Lane:     id,
			SourceID: fmt.Sprintf("src-%d", i),
			Title:    fmt.Sprintf("title %d", i),
			Score:    1 - float64(i)*0.1,
		}
	}
	return lane.Success(id, items, 42)
}

func TestCache_PutGet(t *testing.T) {
	clock := &fakeClock{}
	c := newWithClock(16, clock.Now)
	defer c.Close()

	fp := lane.FingerprintFor("transformer architecture", lane.Vector, 5)
	res := successResult(lane.Vector, 3)
	c.Put(fp, res, time.Hour)

	got, ok := c.Get(fp)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Items) != 3 || got.Items[0].SourceID != "src-0" {
		t.Fatalf("cached items mismatch: %+v", got.Items)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := &fakeClock{}
	c := newWithClock(16, clock.Now)
	defer c.Close()

	fp := lane.FingerprintFor("weather in tokyo", lane.Web, 10)
	c.Put(fp, successResult(lane.Web, 1), 10*time.Minute)

	clock.Advance(9 * time.Minute)
	if _, ok := c.Get(fp); !ok {
		t.Fatal("entry should still be live before TTL")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(fp); ok {
		t.Fatal("entry should have expired")
	}
	// Lazy removal actually dropped the entry.
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size = %d", c.Size())
	}
}

func TestCache_ReadDoesNotExtendTTL(t *testing.T) {
	clock := &fakeClock{}
	c := newWithClock(16, clock.Now)
	defer c.Close()

	fp := lane.FingerprintFor("q", lane.Web, 10)
	c.Put(fp, successResult(lane.Web, 1), 10*time.Minute)

	clock.Advance(6 * time.Minute)
	if _, ok := c.Get(fp); !ok {
		t.Fatal("expected hit at 6m")
	}
	clock.Advance(5 * time.Minute)
	if _, ok := c.Get(fp); ok {
		t.Fatal("read at 6m must not extend the 10m TTL")
	}
}

func TestCache_RejectsNonSuccess(t *testing.T) {
	clock := &fakeClock{}
	c := newWithClock(16, clock.Now)
	defer c.Close()

	fp := lane.FingerprintFor("q", lane.News, 10)
	c.Put(fp, lane.Timeout(lane.News, 1000), time.Hour)
	if _, ok := c.Get(fp); ok {
		t.Fatal("non-success results must not be cached")
	}
}

func TestCache_BoundedSize(t *testing.T) {
	clock := &fakeClock{}
	c := newWithClock(8, clock.Now)
	defer c.Close()

	for i := 0; i < 64; i++ {
		fp := lane.FingerprintFor(fmt.Sprintf("query %d", i), lane.Web, 10)
		c.Put(fp, successResult(lane.Web, 1), time.Hour)
	}
	// Size may be <= capacity due to eviction (otter is probabilistic but bounded).
	if c.Size() > 8 {
		t.Fatalf("cache exceeded capacity: size = %d", c.Size())
	}
}
