package source

import (
	"context"
	"fmt"
	"strings"
)

// RAIDPoller derives array level and rebuild state from the storage pools.
type RAIDPoller struct {
	c    Caller
	opts Options
}

func NewRAIDPoller(c Caller, opts Options) *RAIDPoller {
	return &RAIDPoller{c: c, opts: opts}
}

func (p *RAIDPoller) Definition() Definition { return definition("raid") }

func (p *RAIDPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchStorageInfo(ctx, p.c, "raid")
	if err != nil {
		return nil, err
	}

	level := "unknown"
	var totalDrives, healthyDrives, degradedDrives int
	rebuilding := false

	for _, pool := range info.StoragePools {
		if lvl := raidLevel(pool.DeviceType); lvl != "" {
			level = lvl
		}
		totalDrives += len(pool.Disks)
		status := strings.ToLower(pool.Status)
		if status == "normal" {
			healthyDrives += len(pool.Disks)
			continue
		}
		degradedDrives += len(pool.Disks)
		if status == "degraded" || status == "rebuilding" {
			rebuilding = true
		}
	}
	if level == "unknown" {
		for _, v := range info.Volumes {
			if lvl := raidLevel(v.DeviceType); lvl != "" {
				level = lvl
				break
			}
		}
	}

	var health Health
	var status string
	switch {
	case degradedDrives > 0 && !rebuilding:
		health, status = HealthCritical, "Degraded"
	case rebuilding:
		health, status = HealthWarning, "Rebuilding"
	default:
		health, status = HealthHealthy, "Healthy"
	}

	titleLine := fmt.Sprintf("RAID %s - %s", level, status)
	detail := fmt.Sprintf("Drives: %d/%d healthy", healthyDrives, totalDrives)
	if degradedDrives > 0 {
		detail = joinDetail(detail, fmt.Sprintf("%d degraded", degradedDrives))
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"raid_level":      level,
			"total_drives":    totalDrives,
			"healthy_drives":  healthyDrives,
			"degraded_drives": degradedDrives,
			"rebuilding":      rebuilding,
		},
	}, nil
}

// raidLevel extracts "5" from "raid_5", "SHR" from "shr", etc.
func raidLevel(deviceType string) string {
	if deviceType == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimPrefix(deviceType, "raid_"))
}
