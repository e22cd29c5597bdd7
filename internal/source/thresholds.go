package source

// Fixed classification thresholds per metric family. These encode what the
// display treats as worth a glance (warning) versus immediate attention
// (critical); they are presentation policy, not appliance limits.
const (
	cpuWarnPct = 70.0
	cpuCritPct = 90.0

	memWarnPct = 85.0
	memCritPct = 95.0

	sysTempWarnC = 70.0
	sysTempCritC = 80.0

	thermalWarnC = 80.0
	thermalCritC = 90.0

	driveTempWarnC = 55.0

	volumeUsageWarnPct = 85.0
	volumeUsageCritPct = 95.0

	latencyWarnMs = 250.0
	latencyCritMs = 1000.0
)

// classifyHighIsBad maps a metric where larger values are worse.
func classifyHighIsBad(value, warn, crit float64) Health {
	switch {
	case value >= crit:
		return HealthCritical
	case value >= warn:
		return HealthWarning
	default:
		return HealthHealthy
	}
}
