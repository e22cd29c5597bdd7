package source

import (
	"context"
	"fmt"
	"strings"
)

// StoragePoller summarizes total capacity and per-volume health across the
// whole storage subsystem (volumes + disks in one record).
type StoragePoller struct {
	c    Caller
	opts Options
}

func NewStoragePoller(c Caller, opts Options) *StoragePoller {
	return &StoragePoller{c: c, opts: opts}
}

func (p *StoragePoller) Definition() Definition { return definition("storage") }

func (p *StoragePoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchStorageInfo(ctx, p.c, "storage")
	if err != nil {
		return nil, err
	}

	var total, used int64
	health := HealthHealthy
	for _, v := range info.Volumes {
		total += int64(v.Size.Total)
		used += int64(v.Size.Used)
		health = Worst(health, volumeHealth(v.Status))
	}
	for _, d := range info.Disks {
		if d.Temp > driveTempWarnC {
			health = Worst(health, HealthWarning)
		}
	}

	usagePct := 0.0
	if total > 0 {
		usagePct = float64(used) / float64(total) * 100
	}

	titleLine := fmt.Sprintf("Storage - %s", title(health.String()))
	detail := joinDetail(
		fmt.Sprintf("Used: %.1f%%", usagePct),
		fmt.Sprintf("%s of %s", formatBytes(used), formatBytes(total)),
		fmt.Sprintf("Volumes: %d", len(info.Volumes)),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"total_bytes":   total,
			"used_bytes":    used,
			"usage_percent": usagePct,
			"volume_count":  len(info.Volumes),
			"disk_count":    len(info.Disks),
		},
	}, nil
}

// volumeHealth maps a DSM volume status string to a health level.
// Anything outside the known-good set is treated as critical: a volume state
// we cannot name is not a volume state we can trust.
func volumeHealth(status string) Health {
	switch strings.ToLower(status) {
	case "normal":
		return HealthHealthy
	case "warning", "degraded", "attention", "background":
		return HealthWarning
	default:
		return HealthCritical
	}
}
