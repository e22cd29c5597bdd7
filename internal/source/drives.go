package source

import (
	"context"
	"fmt"
	"strings"
)

// DrivesPoller reports per-disk status and SMART health.
type DrivesPoller struct {
	c    Caller
	opts Options
}

func NewDrivesPoller(c Caller, opts Options) *DrivesPoller {
	return &DrivesPoller{c: c, opts: opts}
}

func (p *DrivesPoller) Definition() Definition { return definition("drives") }

func (p *DrivesPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchStorageInfo(ctx, p.c, "drives")
	if err != nil {
		return nil, err
	}

	var healthy, warning int
	for _, d := range info.Disks {
		if strings.ToLower(d.Status) == "normal" && strings.ToLower(d.SmartStatus) == "normal" {
			healthy++
		} else {
			warning++
		}
	}

	health := HealthHealthy
	if warning > 0 {
		health = HealthWarning
	}

	titleLine := fmt.Sprintf("Drive Health - %s", title(health.String()))
	detail := fmt.Sprintf("Healthy: %d/%d", healthy, len(info.Disks))
	if warning > 0 {
		detail = joinDetail(detail, fmt.Sprintf("Warnings: %d", warning))
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"total_drives":   len(info.Disks),
			"healthy_drives": healthy,
			"warning_drives": warning,
		},
	}, nil
}
