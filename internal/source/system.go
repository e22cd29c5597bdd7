package source

import (
	"context"
	"fmt"
)

// SystemPoller combines SYNO.Core.System info and utilization into the
// headline "System Overview" record.
type SystemPoller struct {
	c    Caller
	opts Options
}

func NewSystemPoller(c Caller, opts Options) *SystemPoller {
	return &SystemPoller{c: c, opts: opts}
}

func (p *SystemPoller) Definition() Definition { return definition("system") }

func (p *SystemPoller) Poll(ctx context.Context) (*Reading, error) {
	info, err := fetchSystemInfo(ctx, p.c, "system")
	if err != nil {
		return nil, err
	}
	util, err := fetchUtilization(ctx, p.c, "system")
	if err != nil {
		return nil, err
	}

	cpu := util.CPU.UserLoad + util.CPU.SystemLoad
	mem := util.Memory.RealUsage

	health := classifyHighIsBad(cpu, cpuWarnPct, cpuCritPct)
	health = Worst(health, classifyHighIsBad(mem, memWarnPct, memCritPct))
	health = Worst(health, classifyHighIsBad(info.SysTemp, sysTempWarnC, sysTempCritC))

	uptime := parseUptime(info.UpTime)

	model := info.Model
	if model == "" {
		model = "NAS"
	}
	titleLine := fmt.Sprintf("%s - %s", model, title(health.String()))
	detail := joinDetail(
		fmt.Sprintf("CPU: %.1f%%", cpu),
		fmt.Sprintf("Mem: %.1f%%", mem),
		formatTemp(info.SysTemp, p.opts.TempUnit),
		fmt.Sprintf("Up: %s", formatUptime(uptime)),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"model":          model,
			"firmware":       info.FirmwareVer,
			"cpu_percent":    cpu,
			"memory_percent": mem,
			"temperature_c":  info.SysTemp,
			"uptime_seconds": uptime,
		},
	}, nil
}
