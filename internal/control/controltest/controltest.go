// Package controltest wires a control plane onto miniredis and an in-memory bus.
package controltest

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"inboxtriage/internal/control"
	"inboxtriage/pkg/mq"
)

// Clock 可手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type Env struct {
	Redis *miniredis.Miniredis
	RDB   *redis.Client
	Store *control.RedisStore
	Bus   *mq.MemoryBus
	Clock *Clock
	Plane *control.Plane
}

// New 启动 miniredis 并在 t 结束时关闭
func New(t testing.TB, opts control.Options) *Env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	store := control.NewRedisStore(rdb)
	bus := mq.NewMemoryBus()
	return &Env{
		Redis: mr,
		RDB:   rdb,
		Store: store,
		Bus:   bus,
		Clock: clock,
		Plane: control.NewPlane(store, bus, nil, opts),
	}
}
