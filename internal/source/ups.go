package source

import (
	"context"
	"fmt"
)

const (
	upsChargeWarnPct = 50.0
	upsChargeCritPct = 20.0
)

// UPSPoller reports battery state for an attached UPS, if any.
type UPSPoller struct {
	c    Caller
	opts Options
}

func NewUPSPoller(c Caller, opts Options) *UPSPoller {
	return &UPSPoller{c: c, opts: opts}
}

func (p *UPSPoller) Definition() Definition { return definition("ups") }

func (p *UPSPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchSystemInfo(ctx, p.c, "ups")
	if err != nil {
		return nil, err
	}

	if info.UPSInfo == nil || info.UPSInfo.Model == "" {
		t, d := twoLines("UPS - Not detected", "No UPS connected")
		return &Reading{
			Title:   t,
			Detail:  d,
			Health:  HealthHealthy,
			Metrics: map[string]any{"ups_present": false},
		}, nil
	}

	ups := info.UPSInfo
	health := HealthHealthy
	switch {
	case ups.BatteryCharge < upsChargeCritPct:
		health = HealthCritical
	case ups.BatteryCharge < upsChargeWarnPct:
		health = HealthWarning
	}

	titleLine := fmt.Sprintf("UPS - %.0f%% charge", ups.BatteryCharge)
	detail := joinDetail(
		fmt.Sprintf("Model: %s", ups.Model),
		fmt.Sprintf("Load: %.0f%%", ups.LoadPercent),
		fmt.Sprintf("Runtime: %.0fm", ups.RuntimeMinutes),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"ups_present":     true,
			"ups_model":       ups.Model,
			"battery_charge":  ups.BatteryCharge,
			"load_percent":    ups.LoadPercent,
			"runtime_minutes": ups.RuntimeMinutes,
		},
	}, nil
}
