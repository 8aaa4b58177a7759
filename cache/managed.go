package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/sai-proxy/types"
)

const (
	DefaultCapacity   = 256
	DefaultIdleExpiry = time.Hour
)

const (
	reasonExpired    = "expired"
	reasonCapacity   = "capacity"
	reasonInvalidate = "invalidate"
)

// Store is the persistent key-value store a ManagedCache reads through
// and writes back to.
type Store[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	Put(ctx context.Context, key K, value V) error
}

type Options[K comparable, V any] struct {
	Name       string
	Capacity   int
	IdleExpiry time.Duration
	// CleanupInterval runs maintenance in the background. Zero disables the
	// sweeper; maintenance still runs on every Get and Put.
	CleanupInterval time.Duration
	// Default builds the value returned for keys the store does not have.
	// Nil means the zero value of V.
	Default func() V
	// IsSentinel reports values that are cached but never written back.
	IsSentinel func(V) bool
	// ValidateKey rejects keys the store can never hold, before they are
	// cached. An unwritable resident entry would fail every eviction pass.
	ValidateKey func(K) error
	// KeyString must map distinct keys to distinct strings. It keys load
	// coalescing and defaults to fmt.Sprint.
	KeyString func(K) string
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	lastAccess time.Time
}

// ManagedCache is a bounded read-through, write-back cache in front of a
// Store. Entries leave the cache through idle expiry, LRU capacity
// eviction or InvalidateAll, and every evicted non-sentinel entry is
// written to the store exactly once by the goroutine that evicted it.
type ManagedCache[K comparable, V any] struct {
	name    string
	store   Store[K, V]
	opts    Options[K, V]
	logger  types.Logger
	metrics *cacheMetrics
	now     func() time.Time

	mu      sync.Mutex
	entries map[K]*list.Element
	lru     *list.List
	// keys whose write-back is in progress; loads and puts for them wait.
	flushing map[K]chan struct{}

	loads singleflight.Group

	// gate makes Close a barrier: operations hold it shared, Close exclusively.
	gate   sync.RWMutex
	closed bool

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
	sweepOnce   sync.Once
}

func New[K comparable, V any](store Store[K, V], opts Options[K, V], logger types.Logger, metrics types.MetricsManager) (*ManagedCache[K, V], error) {
	if store == nil {
		return nil, types.Errorf(types.ErrCacheConfigInvalid, "cache %s: store is nil", opts.Name)
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.IdleExpiry == 0 {
		opts.IdleExpiry = DefaultIdleExpiry
	}
	if opts.Capacity < 0 || opts.IdleExpiry < 0 || opts.CleanupInterval < 0 {
		return nil, types.Errorf(types.ErrCacheConfigInvalid, "cache %s: capacity %d, idle expiry %v, cleanup interval %v",
			opts.Name, opts.Capacity, opts.IdleExpiry, opts.CleanupInterval)
	}
	if opts.Default == nil {
		opts.Default = func() V {
			var zero V
			return zero
		}
	}
	if opts.KeyString == nil {
		opts.KeyString = func(key K) string { return fmt.Sprint(key) }
	}

	c := &ManagedCache[K, V]{
		name:     opts.Name,
		store:    store,
		opts:     opts,
		logger:   logger,
		metrics:  newCacheMetrics(metrics, opts.Name),
		now:      time.Now,
		entries:  make(map[K]*list.Element),
		lru:      list.New(),
		flushing: make(map[K]chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.startSweeper(opts.CleanupInterval)
	}

	logger.Debug("Cache created",
		zap.String("cache", c.name),
		zap.Int("capacity", opts.Capacity),
		zap.Duration("idle_expiry", opts.IdleExpiry),
		zap.Duration("cleanup_interval", opts.CleanupInterval),
	)

	return c, nil
}

func (c *ManagedCache[K, V]) Name() string {
	return c.name
}

func (c *ManagedCache[K, V]) Capacity() int {
	return c.opts.Capacity
}

func (c *ManagedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Contains reports whether key is resident without touching its recency.
func (c *ManagedCache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *ManagedCache[K, V]) Stats() types.CacheStats {
	return types.CacheStats{
		Name:     c.name,
		Entries:  c.Len(),
		Capacity: c.opts.Capacity,
	}
}

// Get returns the resident value for key, loading it from the store on a
// miss. Concurrent misses for one key share a single store read. A key the
// store does not have resolves to Options.Default.
//
// If the eviction pass that follows the lookup fails to write back another
// entry, Get returns the value it resolved together with that error.
func (c *ManagedCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	c.gate.RLock()
	defer c.gate.RUnlock()

	if c.closed {
		return zero, types.Errorf(types.ErrCacheClosed, "cache %s", c.name)
	}
	if err := c.validate(key); err != nil {
		return zero, err
	}

	// idle entries are dropped before the lookup so an expired record is
	// never served
	if err := c.maintain(ctx); err != nil {
		return zero, err
	}

	value, err := c.lookup(ctx, key)
	if err != nil {
		return zero, err
	}

	return value, c.maintain(ctx)
}

// Put installs value for key, replacing any resident value. It counts as
// an access.
func (c *ManagedCache[K, V]) Put(ctx context.Context, key K, value V) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	if c.closed {
		return types.Errorf(types.ErrCacheClosed, "cache %s", c.name)
	}
	if err := c.validate(key); err != nil {
		return err
	}

	c.lockSettled(key)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		c.touchLocked(el)
	} else {
		c.insertLocked(key, value)
	}
	c.mu.Unlock()

	return c.maintain(ctx)
}

// InvalidateAll evicts every resident entry, writing back each
// non-sentinel value. It keeps going past failed write-backs; entries whose
// write-back failed stay resident and the failures are returned together.
func (c *ManagedCache[K, V]) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	keys := make([]K, 0, c.lru.Len())
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	c.mu.Unlock()

	var errs error
	for _, key := range keys {
		if err := c.evictKey(ctx, key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		c.logger.Error("Cache invalidation incomplete",
			zap.String("cache", c.name),
			zap.Int("remaining", c.Len()),
			zap.Error(errs),
		)
		return errs
	}

	c.logger.Debug("Cache invalidated", zap.String("cache", c.name), zap.Int("evicted", len(keys)))
	return nil
}

// Close rejects further Get and Put calls, waits for in-flight ones, stops
// the sweeper and flushes every entry. It may be called again to retry a
// flush that failed.
func (c *ManagedCache[K, V]) Close(ctx context.Context) error {
	c.gate.Lock()
	c.closed = true
	c.gate.Unlock()

	c.stopSweeper()

	return c.InvalidateAll(ctx)
}

func (c *ManagedCache[K, V]) validate(key K) error {
	if c.opts.ValidateKey == nil {
		return nil
	}
	if err := c.opts.ValidateKey(key); err != nil {
		return fmt.Errorf("cache %s: %w", c.name, err)
	}
	return nil
}

func (c *ManagedCache[K, V]) lookup(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.touchLocked(el)
		value := el.Value.(*entry[K, V]).value
		c.mu.Unlock()
		c.metrics.hits.Inc()
		return value, nil
	}
	c.mu.Unlock()

	c.metrics.misses.Inc()

	result, err, _ := c.loads.Do(c.opts.KeyString(key), func() (interface{}, error) {
		return c.load(ctx, key)
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

func (c *ManagedCache[K, V]) load(ctx context.Context, key K) (V, error) {
	c.lockSettled(key)
	if el, ok := c.entries[key]; ok {
		c.touchLocked(el)
		value := el.Value.(*entry[K, V]).value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, found, err := c.store.Get(context.WithoutCancel(ctx), key)
	if err != nil {
		c.metrics.load("error").Inc()
		loadErr := fmt.Errorf("%w: cache %s key %v: %w", types.ErrCacheLoadFailed, c.name, key, err)
		c.logger.ErrorWithErrStack("Failed to load cache entry", loadErr, zap.String("cache", c.name))
		var zero V
		return zero, loadErr
	}

	if found {
		c.metrics.load("found").Inc()
	} else {
		c.metrics.load("default").Inc()
		value = c.opts.Default()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// a Put for this key may have landed while the store was read
	if el, ok := c.entries[key]; ok {
		c.touchLocked(el)
		return el.Value.(*entry[K, V]).value, nil
	}
	c.insertLocked(key, value)

	return value, nil
}

// lockSettled acquires c.mu once no write-back of key is in flight.
func (c *ManagedCache[K, V]) lockSettled(key K) {
	c.mu.Lock()
	for {
		done, ok := c.flushing[key]
		if !ok {
			return
		}
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
}

// maintain evicts idle entries from the LRU tail, then LRU entries while
// the cache is over capacity. It stops at the first failed write-back.
func (c *ManagedCache[K, V]) maintain(ctx context.Context) error {
	for {
		c.mu.Lock()
		el, reason := c.victimLocked()
		if el == nil {
			c.mu.Unlock()
			return nil
		}
		e, done := c.detachLocked(el)
		c.mu.Unlock()

		if err := c.writeBack(ctx, e, done, reason); err != nil {
			return err
		}
	}
}

func (c *ManagedCache[K, V]) victimLocked() (*list.Element, string) {
	el := c.lru.Back()
	if el == nil {
		return nil, ""
	}

	if c.now().Sub(el.Value.(*entry[K, V]).lastAccess) > c.opts.IdleExpiry {
		return el, reasonExpired
	}
	if c.lru.Len() > c.opts.Capacity {
		return el, reasonCapacity
	}

	return nil, ""
}

func (c *ManagedCache[K, V]) evictKey(ctx context.Context, key K) error {
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	e, done := c.detachLocked(el)
	c.mu.Unlock()

	return c.writeBack(ctx, e, done, reasonInvalidate)
}

// writeBack persists an entry detached by detachLocked. On failure the
// entry goes back to the LRU tail so the value is not lost.
func (c *ManagedCache[K, V]) writeBack(ctx context.Context, e *entry[K, V], done chan struct{}, reason string) error {
	var err error

	sentinel := c.opts.IsSentinel != nil && c.opts.IsSentinel(e.value)
	if !sentinel {
		err = c.store.Put(context.WithoutCancel(ctx), e.key, e.value)
	}

	c.mu.Lock()
	delete(c.flushing, e.key)
	if err != nil {
		c.entries[e.key] = c.lru.PushBack(e)
		c.metrics.entries.Set(float64(c.lru.Len()))
	}
	c.mu.Unlock()
	close(done)

	if err != nil {
		c.metrics.writeBack("error").Inc()
		wbErr := fmt.Errorf("%w: cache %s key %v: %w", types.ErrCacheWriteBackFailed, c.name, e.key, err)
		c.logger.ErrorWithErrStack("Failed to write back cache entry", wbErr,
			zap.String("cache", c.name),
			zap.String("reason", reason),
		)
		return wbErr
	}

	if sentinel {
		c.metrics.sentinelSkips.Inc()
	} else {
		c.metrics.writeBack("success").Inc()
	}
	c.metrics.eviction(reason).Inc()

	return nil
}

func (c *ManagedCache[K, V]) detachLocked(el *list.Element) (*entry[K, V], chan struct{}) {
	e := c.lru.Remove(el).(*entry[K, V])
	delete(c.entries, e.key)

	done := make(chan struct{})
	c.flushing[e.key] = done
	c.metrics.entries.Set(float64(c.lru.Len()))

	return e, done
}

func (c *ManagedCache[K, V]) insertLocked(key K, value V) {
	c.entries[key] = c.lru.PushFront(&entry[K, V]{
		key:        key,
		value:      value,
		lastAccess: c.now(),
	})
	c.metrics.entries.Set(float64(c.lru.Len()))
}

func (c *ManagedCache[K, V]) touchLocked(el *list.Element) {
	el.Value.(*entry[K, V]).lastAccess = c.now()
	c.lru.MoveToFront(el)
}
