// Package poll shares periodic contract reads between subscribers. Each key
// has one poller no matter how many subscribers watch it; the poller stops
// with the last subscriber.
package poll

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/time/rate"

	"biomesxp.io/internal/chain"
)

const (
	MinInterval     = 500 * time.Millisecond
	DefaultInterval = 4 * time.Second
)

// Key identifies one read: contract, function and packed arguments.
type Key struct {
	Contract common.Address
	Function string
	Args     string
}

func (k Key) String() string {
	return k.Contract.Hex() + "." + k.Function + "(" + k.Args + ")"
}

// Fetcher performs the read behind a key.
type Fetcher func(ctx context.Context) (any, error)

// Read returns the key and fetcher for a contract read.
func Read(c *chain.Contract, method string, args ...any) (Key, Fetcher, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return Key{}, nil, err
	}
	k := Key{Contract: c.Address, Function: method, Args: hexutil.Encode(data[4:])}
	return k, func(ctx context.Context) (any, error) {
		return c.Read(ctx, method, args...)
	}, nil
}

type Update struct {
	Key   Key
	Value any
	Err   error
	At    time.Time
}

type subscriber struct {
	ch       chan Update
	interval time.Duration
}

type entry struct {
	key     Key
	fetch   Fetcher
	cancel  context.CancelFunc
	refresh chan struct{}
	resched chan struct{}

	// guarded by Cache.mu
	subs     map[int]*subscriber
	nextID   int
	interval time.Duration
	last     *Update
}

type Cache struct {
	ctx     context.Context
	limiter *rate.Limiter
	logger  *log.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	wg      sync.WaitGroup
}

// New returns a cache whose pollers live until ctx ends. limiter bounds the
// total read rate across keys; nil means unlimited.
func New(ctx context.Context, limiter *rate.Limiter, logger *log.Logger) *Cache {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{ctx: ctx, limiter: limiter, logger: logger, entries: map[Key]*entry{}}
}

// Subscribe watches key, polling at least every interval. The channel holds
// only the latest update. cancel closes it.
func (c *Cache) Subscribe(key Key, interval time.Duration, fetch Fetcher) (<-chan Update, func()) {
	if interval < MinInterval {
		interval = MinInterval
	}
	sub := &subscriber{ch: make(chan Update, 1), interval: interval}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		ctx, cancel := context.WithCancel(c.ctx)
		e = &entry{
			key:      key,
			fetch:    fetch,
			cancel:   cancel,
			refresh:  make(chan struct{}, 1),
			resched:  make(chan struct{}, 1),
			subs:     map[int]*subscriber{},
			interval: interval,
		}
		c.entries[key] = e
		c.wg.Add(1)
		go c.run(ctx, e)
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = sub
	if interval < e.interval {
		e.interval = interval
		signal(e.resched)
	}
	if e.last != nil {
		sub.ch <- *e.last
	}
	c.mu.Unlock()

	var once sync.Once
	return sub.ch, func() { once.Do(func() { c.unsubscribe(e, id) }) }
}

func (c *Cache) unsubscribe(e *entry, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := e.subs[id]
	if !ok {
		return
	}
	delete(e.subs, id)
	close(sub.ch)
	if len(e.subs) == 0 {
		e.cancel()
		if c.entries[e.key] == e {
			delete(c.entries, e.key)
		}
		return
	}
	shortest := time.Duration(0)
	for _, s := range e.subs {
		if shortest == 0 || s.interval < shortest {
			shortest = s.interval
		}
	}
	e.interval = shortest
}

// Refresh forces an immediate read. It reports whether key is polled.
func (c *Cache) Refresh(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		signal(e.refresh)
	}
	return ok
}

// Last returns the latest update for key, if any.
func (c *Cache) Last(key Key) (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.last == nil {
		return Update{}, false
	}
	return *e.last, true
}

// Pollers counts running pollers.
func (c *Cache) Pollers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until every poller has exited.
func (c *Cache) Wait() { c.wg.Wait() }

func (c *Cache) run(ctx context.Context, e *entry) {
	defer c.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-e.refresh:
			stopTimer(timer)
		case <-e.resched:
			stopTimer(timer)
			timer.Reset(c.intervalOf(e))
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		v, err := e.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Printf("poll %s: %v", e.key, err)
		}
		c.publish(e, Update{Key: e.key, Value: v, Err: err, At: time.Now().UTC()})
		timer.Reset(c.intervalOf(e))
	}
}

func (c *Cache) intervalOf(e *entry) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.interval
}

func (c *Cache) publish(e *entry, u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.last = &u
	for _, s := range e.subs {
		select {
		case s.ch <- u:
		default:
			// Replace the stale update.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- u:
			default:
			}
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
