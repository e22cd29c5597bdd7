package source

import (
	"context"
	"fmt"
)

// HardwarePoller combines the system temperature sensor with per-drive
// temperatures into one hardware record.
type HardwarePoller struct {
	c    Caller
	opts Options
}

func NewHardwarePoller(c Caller, opts Options) *HardwarePoller {
	return &HardwarePoller{c: c, opts: opts}
}

func (p *HardwarePoller) Definition() Definition { return definition("hardware") }

func (p *HardwarePoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchSystemInfo(ctx, p.c, "hardware")
	if err != nil {
		return nil, err
	}
	storage, err := fetchStorageInfo(ctx, p.c, "hardware")
	if err != nil {
		return nil, err
	}

	var sum, maxTemp float64
	var monitored int
	for _, d := range storage.Disks {
		if d.Temp <= 0 {
			continue
		}
		monitored++
		sum += d.Temp
		if d.Temp > maxTemp {
			maxTemp = d.Temp
		}
	}
	avgTemp := 0.0
	if monitored > 0 {
		avgTemp = sum / float64(monitored)
	}

	health := classifyHighIsBad(info.SysTemp, sysTempWarnC, sysTempCritC)
	if maxTemp > driveTempWarnC {
		health = Worst(health, HealthWarning)
	}

	titleLine := joinDetail(
		fmt.Sprintf("CPU: %s", formatTemp(info.SysTemp, p.opts.TempUnit)),
		fmt.Sprintf("%d drives", monitored),
		fmt.Sprintf("Avg: %s", formatTemp(avgTemp, p.opts.TempUnit)),
	)
	detail := fmt.Sprintf("Hardware - %s", title(health.String()))

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"cpu_temp_c":       info.SysTemp,
			"monitored_drives": monitored,
			"avg_drive_temp_c": avgTemp,
			"max_drive_temp_c": maxTemp,
		},
	}, nil
}
