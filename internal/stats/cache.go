package stats

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// hashInput holds only the fields statistics depend on, so sync bookkeeping
// changes never miss the cache
type hashInput struct {
	TargetCount    int
	FrequencyType  string
	FrequencyDays  []int
	FrequencyCount int
	CreatedAt      string
	Days           int
	Today          string
	Completions    []dayCount `hash:"set"`
}

type dayCount struct {
	Date  string
	Count int
}

type cacheEntry struct {
	hash   uint64
	report Report
}

// Cache memoises Reports by habit id. An entry is only reused when the hash
// of its inputs matches; Invalidate drops it outright.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]

	mu     sync.Mutex
	hits   int
	misses int
}

func NewCache(size int) (*Cache, error) {
	if size < 1 {
		size = constants.DefaultStatsCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Report returns the cached report or computes and stores a fresh one
func (c *Cache) Report(h models.Habit, completions []models.Completion, days int, today time.Time) (Report, error) {
	sum, err := inputHash(h, completions, days, today)
	if err != nil {
		return Report{}, err
	}

	if e, ok := c.entries.Get(h.ID); ok && e.hash == sum {
		c.count(true)
		return e.report, nil
	}
	c.count(false)

	r := Compute(h, completions, days, today)
	c.entries.Add(h.ID, cacheEntry{hash: sum, report: r})
	return r, nil
}

// Invalidate drops the entry for habitID after a local write or a pull
func (c *Cache) Invalidate(habitIDs ...string) {
	for _, id := range habitIDs {
		c.entries.Remove(id)
	}
}

func (c *Cache) Purge() {
	c.entries.Purge()
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns hit and miss counts since creation
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func inputHash(h models.Habit, completions []models.Completion, days int, today time.Time) (uint64, error) {
	in := hashInput{
		TargetCount:    h.TargetCount,
		FrequencyType:  string(h.FrequencyType),
		FrequencyCount: h.FrequencyCount,
		Days:           days,
		Today:          utils.FormatDate(today) + " " + today.Location().String(),
	}
	if !h.CreatedAt.IsZero() {
		in.CreatedAt = h.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	for _, wd := range h.FrequencyDays {
		in.FrequencyDays = append(in.FrequencyDays, int(wd))
	}
	for _, c := range completions {
		in.Completions = append(in.Completions, dayCount{Date: c.CompletionDate, Count: c.CompletedCount})
	}

	sum, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to hash statistics input: %w", err)
	}
	return sum, nil
}
