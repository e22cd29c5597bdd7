package source

import (
	"context"
	"fmt"
	"strings"
)

// CachePoller reports SSD cache configuration, fill level, and hit rates.
type CachePoller struct {
	c    Caller
	opts Options
}

func NewCachePoller(c Caller, opts Options) *CachePoller {
	return &CachePoller{c: c, opts: opts}
}

func (p *CachePoller) Definition() Definition { return definition("cache") }

func (p *CachePoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchStorageInfo(ctx, p.c, "cache")
	if err != nil {
		return nil, err
	}

	// A NAS without a cache is healthy, just uninteresting.
	if len(info.SSDCaches) == 0 && len(info.SharedCaches) == 0 {
		t, d := twoLines("SSD Cache - Disabled", "No cache configured")
		return &Reading{
			Title:   t,
			Detail:  d,
			Health:  HealthHealthy,
			Metrics: map[string]any{"cache_enabled": false},
		}, nil
	}

	var total, used int64
	var hitRate float64
	health := HealthHealthy
	caches := info.SSDCaches
	for _, c := range caches {
		total += int64(c.Size.Total)
		used += int64(c.Size.Occupied)
		if c.HitRate > hitRate {
			hitRate = c.HitRate
		}
		if strings.ToLower(c.Status) != "normal" {
			health = Worst(health, HealthWarning)
		}
	}
	if total == 0 {
		for _, c := range info.SharedCaches {
			total += int64(c.Size.Total)
			used += int64(c.Size.Used)
		}
	}

	ssdCount := 0
	for _, disk := range info.Disks {
		if disk.IsSSD && strings.Contains(strings.ToLower(disk.UsedBy), "cache") {
			ssdCount++
		}
	}

	usagePct := 0.0
	if total > 0 {
		usagePct = float64(used) / float64(total) * 100
	}

	titleLine := fmt.Sprintf("SSD Cache - %s", title(health.String()))
	detail := joinDetail(
		fmt.Sprintf("Size: %s", formatBytes(total)),
		fmt.Sprintf("Used: %.1f%%", usagePct),
		fmt.Sprintf("Hit rate: %.0f%%", hitRate),
		fmt.Sprintf("SSDs: %d", ssdCount),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"cache_enabled":    true,
			"cache_volumes":    len(caches),
			"ssd_count":        ssdCount,
			"cache_size_bytes": total,
			"cache_used_bytes": used,
			"usage_percent":    usagePct,
			"hit_rate":         hitRate,
		},
	}, nil
}
