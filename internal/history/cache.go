// Package history provides the process-wide, lazily populated view of
// historical participation records used for point-in-time lookups during
// interactive inference.
package history

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/features"
	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/models"
)

// Source supplies the historical records the cache is populated from.
type Source interface {
	LoadHistorical() ([]*models.ParticipationRecord, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func() ([]*models.ParticipationRecord, error)

// LoadHistorical implements Source
func (f SourceFunc) LoadHistorical() ([]*models.ParticipationRecord, error) {
	return f()
}

// LastRace is the projection of a horse's most recent record before a given
// date onto the lag feature fields.
type LastRace struct {
	PreviousRank       float64
	DaysSinceLast      float64
	PreviousSpeedIndex float64
	PreviousLast3F     float64
}

// SentinelLastRace returns the documented no-history result.
func SentinelLastRace() LastRace {
	return LastRace{
		PreviousRank:       features.LagRankSentinel,
		DaysSinceLast:      features.DefaultIntervalDays,
		PreviousSpeedIndex: 0,
		PreviousLast3F:     0,
	}
}

type entry struct {
	date       time.Time
	rank       float64
	speedIndex float64
	last3F     float64
}

// Cache is the process-wide history view. Population runs exactly once no
// matter how many goroutines race into Load; after population the internal
// table is never mutated, so reads need no locking. Lookups are memoized
// with a TTL cache since interactive inference asks about the same
// (horse, race date) pairs repeatedly.
type Cache struct {
	source Source
	logger *logrus.Logger

	mu     sync.Mutex
	loaded atomic.Bool
	// loadCount records population passes for the load-once guarantee.
	loadCount atomic.Int64

	byHorse map[string][]entry

	lookups   *cache.Cache
	maxSize   int
	ttl       time.Duration
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// New creates a history cache over the given source. Nothing is read until
// the first Load or GetLastRace call.
func New(source Source, logger *logrus.Logger, ttl time.Duration, maxSize int) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{
		source:  source,
		logger:  logger,
		lookups: cache.New(ttl, ttl*2),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Load populates the cache exactly once; subsequent and concurrent calls
// are no-ops. A failed or empty source is not an error: the cache loads
// empty with a surfaced warning and every lookup returns sentinels.
func (c *Cache) Load() {
	if c.loaded.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded.Load() {
		return
	}
	c.populate()
	c.loaded.Store(true)
}

func (c *Cache) populate() {
	c.loadCount.Add(1)
	c.byHorse = make(map[string][]entry)

	records, err := c.source.LoadHistorical()
	if err != nil {
		c.logger.WithError(err).Warn("History load failed, predictions will use default values")
		return
	}
	if len(records) == 0 {
		c.logger.Warn("No historical data found, predictions will use default values")
		return
	}

	// Speed index over the history's own course buckets, same derivation
	// as the fitting path.
	buckets := features.FitCourseBuckets(records)
	sorted := features.SortChronological(records, func(r *models.ParticipationRecord) string { return r.HorseID })

	for _, r := range sorted {
		e := entry{
			date:       r.Date,
			rank:       features.LagRankSentinel,
			speedIndex: buckets.SpeedIndex(r.CourseType, r.Distance, r.Time),
		}
		if rank, ok := r.RankValue(); ok {
			e.rank = float64(rank)
		}
		if t, ok := features.ParseSeconds(r.Last3F); ok && t > 0 {
			e.last3F = t
		}
		c.byHorse[r.HorseID] = append(c.byHorse[r.HorseID], e)
	}

	metrics.HistoryCacheRecords.Set(float64(len(sorted)))
	c.logger.WithFields(logrus.Fields{
		"records": len(sorted),
		"horses":  len(c.byHorse),
	}).Info("History cache loaded")
}

// GetLastRace returns the most recent record strictly before asOf for the
// given horse, projected to the lag fields. The second return value is
// false when the horse has no history before that date; callers then use
// SentinelLastRace.
func (c *Cache) GetLastRace(horseID string, asOf time.Time) (LastRace, bool) {
	c.Load()

	key := fmt.Sprintf("%s:%d", horseID, asOf.Unix())
	if cached, found := c.lookups.Get(key); found {
		c.hitCount.Add(1)
		c.updateHitRatio()
		if result, ok := cached.(lookupResult); ok {
			return result.last, result.found
		}
	}
	c.missCount.Add(1)
	c.updateHitRatio()

	last, found := c.lookup(horseID, asOf)
	if c.lookups.ItemCount() >= c.maxSize {
		c.lookups.DeleteExpired()
	}
	c.lookups.Set(key, lookupResult{last: last, found: found}, c.ttl)
	return last, found
}

type lookupResult struct {
	last  LastRace
	found bool
}

func (c *Cache) lookup(horseID string, asOf time.Time) (LastRace, bool) {
	timeline := c.byHorse[horseID]
	if len(timeline) == 0 {
		return SentinelLastRace(), false
	}

	// Timelines are date-ascending; find the latest entry strictly before
	// asOf. Undated entries sort at the end and never match an as-of query.
	idx := sort.Search(len(timeline), func(i int) bool {
		e := timeline[i]
		return e.date.IsZero() || !e.date.Before(asOf)
	}) - 1
	if idx < 0 {
		return SentinelLastRace(), false
	}

	e := timeline[idx]
	last := LastRace{
		PreviousRank:       e.rank,
		DaysSinceLast:      features.DefaultIntervalDays,
		PreviousSpeedIndex: e.speedIndex,
		PreviousLast3F:     e.last3F,
	}
	if !e.date.IsZero() && !asOf.IsZero() {
		last.DaysSinceLast = math.Floor(asOf.Sub(e.date).Hours() / 24)
	}
	return last, true
}

// Len returns the number of horses with at least one historical record.
func (c *Cache) Len() int {
	c.Load()
	return len(c.byHorse)
}

// LoadCount returns how many population passes have run. It is 1 after any
// number of Load calls.
func (c *Cache) LoadCount() int64 {
	return c.loadCount.Load()
}

func (c *Cache) updateHitRatio() {
	hits := c.hitCount.Load()
	total := hits + c.missCount.Load()
	if total > 0 {
		metrics.HistoryCacheHitRatio.Set(float64(hits) / float64(total))
	}
}
