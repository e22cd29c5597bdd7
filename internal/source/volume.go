package source

import (
	"context"
	"fmt"
)

// VolumePoller reports per-volume states and average fill level.
type VolumePoller struct {
	c    Caller
	opts Options
}

func NewVolumePoller(c Caller, opts Options) *VolumePoller {
	return &VolumePoller{c: c, opts: opts}
}

func (p *VolumePoller) Definition() Definition { return definition("volume") }

func (p *VolumePoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchStorageInfo(ctx, p.c, "volume")
	if err != nil {
		return nil, err
	}

	var healthy, warning, critical int
	var usageSum float64
	health := HealthHealthy
	for _, v := range info.Volumes {
		switch volumeHealth(v.Status) {
		case HealthHealthy:
			healthy++
		case HealthWarning:
			warning++
		default:
			critical++
		}
		health = Worst(health, volumeHealth(v.Status))
		if v.Size.Total > 0 {
			pct := float64(v.Size.Used) / float64(v.Size.Total) * 100
			usageSum += pct
			health = Worst(health, classifyHighIsBad(pct, volumeUsageWarnPct, volumeUsageCritPct))
		}
	}

	count := len(info.Volumes)
	avgUsage := 0.0
	if count > 0 {
		avgUsage = usageSum / float64(count)
	}

	titleLine := fmt.Sprintf("Volumes - %s", title(health.String()))
	detail := joinDetail(
		fmt.Sprintf("Healthy: %d/%d", healthy, count),
		fmt.Sprintf("Avg usage: %.1f%%", avgUsage),
	)
	if warning+critical > 0 {
		detail = joinDetail(detail, fmt.Sprintf("Issues: %d", warning+critical))
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"volume_count":     count,
			"healthy_volumes":  healthy,
			"warning_volumes":  warning,
			"critical_volumes": critical,
			"average_usage":    avgUsage,
		},
	}, nil
}
