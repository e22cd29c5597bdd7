package source

import (
	"context"
	"fmt"
	"strings"
)

// PowerPoller reports power source, fan state, and uptime.
type PowerPoller struct {
	c    Caller
	opts Options
}

func NewPowerPoller(c Caller, opts Options) *PowerPoller {
	return &PowerPoller{c: c, opts: opts}
}

func (p *PowerPoller) Definition() Definition { return definition("power") }

func (p *PowerPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchSystemInfo(ctx, p.c, "power")
	if err != nil {
		return nil, err
	}

	onBattery := info.UPSInfo != nil && info.UPSInfo.Model != "" && info.ExtPowerStatus != 0
	fanOK := strings.ToLower(info.FanStatus) == "normal" || info.FanStatus == ""

	health := HealthHealthy
	source := "External"
	if onBattery {
		health = HealthWarning
		source = "Battery"
	}
	if !fanOK {
		health = Worst(health, HealthWarning)
	}

	uptimeSecs := parseUptime(info.UpTime)
	uptime := formatUptime(uptimeSecs)

	fan := info.FanStatus
	if fanOK {
		fan = "normal"
	}

	titleLine := fmt.Sprintf("Power - %s", source)
	detail := joinDetail(
		fmt.Sprintf("Fan: %s", fan),
		fmt.Sprintf("Up: %s", uptime),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"power_source":   source,
			"on_battery":     onBattery,
			"fan_ok":         fanOK,
			"uptime_seconds": uptimeSecs,
		},
	}, nil
}
