package orcsource

import (
	"slices"
	"sync"
	"sync/atomic"
)

// TrackingSource counts the reads and bytes that pass through it.
type TrackingSource struct {
	underlying Source
	ioOps      atomic.Int64
	bytesRead  atomic.Int64
}

func NewTrackingSource(underlying Source) *TrackingSource {
	return &TrackingSource{underlying: underlying}
}

func (t *TrackingSource) Size() (int64, error) {
	return t.underlying.Size()
}

func (t *TrackingSource) ReadAt(p []byte, off int64, dt DataType) (int, error) {
	t.ioOps.Add(1)
	n, err := t.underlying.ReadAt(p, off, dt)
	t.bytesRead.Add(int64(n))
	return n, err
}

// Name forwards the underlying source's name.
func (t *TrackingSource) Name() string { return Name(t.underlying) }

// IOOps returns the number of ReadAt calls made.
func (t *TrackingSource) IOOps() int64 { return t.ioOps.Load() }

// BytesRead returns the total bytes read.
func (t *TrackingSource) BytesRead() int64 { return t.bytesRead.Load() }

// Reset zeroes the counters.
func (t *TrackingSource) Reset() {
	t.ioOps.Store(0)
	t.bytesRead.Store(0)
}

type cachedRange struct {
	offset int64
	data   []byte
}

func (r cachedRange) contains(off, end int64) bool {
	return off >= r.offset && end <= r.offset+int64(len(r.data))
}

// RangeCachingSource keeps the byte ranges it has read, sorted by offset, and
// serves any read that one of them fully contains. Once maxBytes are held,
// further reads pass through uncached.
type RangeCachingSource struct {
	underlying Source
	maxBytes   int64

	mu     sync.RWMutex
	ranges []cachedRange
	held   int64

	size     int64
	sizeOnce sync.Once
	sizeErr  error
}

// NewRangeCachingSource caches up to maxBytes of underlying; maxBytes <= 0
// means no limit.
func NewRangeCachingSource(underlying Source, maxBytes int64) *RangeCachingSource {
	return &RangeCachingSource{underlying: underlying, maxBytes: maxBytes}
}

// Size is resolved once and memoized.
func (c *RangeCachingSource) Size() (int64, error) {
	c.sizeOnce.Do(func() {
		c.size, c.sizeErr = c.underlying.Size()
	})
	return c.size, c.sizeErr
}

func (c *RangeCachingSource) ReadAt(p []byte, off int64, dt DataType) (int, error) {
	end := off + int64(len(p))

	c.mu.RLock()
	if r, ok := c.lookup(off, end); ok {
		n := copy(p, r.data[off-r.offset:])
		c.mu.RUnlock()
		return n, nil
	}
	c.mu.RUnlock()

	n, err := c.underlying.ReadAt(p, off, dt)
	if err != nil || n == 0 {
		return n, err
	}
	c.store(off, p[:n])
	return n, nil
}

// lookup finds a cached range containing [off, end). Ranges may overlap, so
// every range starting at or before off is a candidate. Callers hold mu.
func (c *RangeCachingSource) lookup(off, end int64) (cachedRange, bool) {
	i, _ := slices.BinarySearchFunc(c.ranges, off+1, func(r cachedRange, target int64) int {
		if r.offset < target {
			return -1
		}
		return 1
	})
	for j := i - 1; j >= 0; j-- {
		if c.ranges[j].contains(off, end) {
			return c.ranges[j], true
		}
	}
	return cachedRange{}, false
}

func (c *RangeCachingSource) store(off int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes > 0 && c.held+int64(len(data)) > c.maxBytes {
		return
	}
	r := cachedRange{offset: off, data: slices.Clone(data)}
	i, _ := slices.BinarySearchFunc(c.ranges, off, func(r cachedRange, target int64) int {
		if r.offset < target {
			return -1
		}
		return 1
	})
	c.ranges = slices.Insert(c.ranges, i, r)
	c.held += int64(len(data))
}

// CachedBytes returns the bytes currently held.
func (c *RangeCachingSource) CachedBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.held
}

// Name forwards the underlying source's name.
func (c *RangeCachingSource) Name() string { return Name(c.underlying) }

// IOStats counts the reads that reached storage.
type IOStats struct {
	Ops   int64
	Bytes int64
}

// Add returns the sum of s and o.
func (s IOStats) Add(o IOStats) IOStats {
	return IOStats{Ops: s.Ops + o.Ops, Bytes: s.Bytes + o.Bytes}
}

// DefaultSource is the composition every aggregated source is read through:
//
//	outer (cache, optional): *RangeCachingSource
//	inner (tracker):         *TrackingSource
//	innermost:               user storage
type DefaultSource struct {
	outer   Source
	tracker *TrackingSource
}

// NewDefaultSource wraps underlying with I/O tracking and, when cacheBytes is
// positive, a range cache of that size in front of the tracker so only misses
// are counted.
func NewDefaultSource(underlying Source, cacheBytes int64) *DefaultSource {
	tracker := NewTrackingSource(underlying)
	d := &DefaultSource{outer: tracker, tracker: tracker}
	if cacheBytes > 0 {
		d.outer = NewRangeCachingSource(tracker, cacheBytes)
	}
	return d
}

func (d *DefaultSource) Size() (int64, error) {
	return d.outer.Size()
}

func (d *DefaultSource) ReadAt(p []byte, off int64, dt DataType) (int, error) {
	return d.outer.ReadAt(p, off, dt)
}

func (d *DefaultSource) Name() string { return d.tracker.Name() }

// Stats returns the I/O that reached storage.
func (d *DefaultSource) Stats() IOStats {
	return IOStats{Ops: d.tracker.IOOps(), Bytes: d.tracker.BytesRead()}
}
