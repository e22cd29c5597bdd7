package source

import (
	"context"
	"fmt"
	"strings"
)

// ThermalPoller watches the chassis temperature sensor and fan state.
type ThermalPoller struct {
	c    Caller
	opts Options
}

func NewThermalPoller(c Caller, opts Options) *ThermalPoller {
	return &ThermalPoller{c: c, opts: opts}
}

func (p *ThermalPoller) Definition() Definition { return definition("thermal") }

func (p *ThermalPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchSystemInfo(ctx, p.c, "thermal")
	if err != nil {
		return nil, err
	}

	health := classifyHighIsBad(info.SysTemp, thermalWarnC, thermalCritC)
	fanOK := strings.ToLower(info.FanStatus) == "normal" || info.FanStatus == ""
	if !fanOK {
		health = Worst(health, HealthWarning)
	}

	fan := info.FanStatus
	if fan == "" {
		fan = "normal"
	}

	titleLine := fmt.Sprintf("Temperature - %s", formatTemp(info.SysTemp, p.opts.TempUnit))
	detail := joinDetail(
		fmt.Sprintf("Status: %s", title(health.String())),
		fmt.Sprintf("Fan: %s", fan),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"system_temp_c": info.SysTemp,
			"fan_status":    fan,
			"fan_ok":        fanOK,
		},
	}, nil
}
