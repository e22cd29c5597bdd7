package source

import "time"

// Config selects which sources are polled and how values are normalized.
// Enabled maps source name -> flag; sources absent from the map default on.
type Config struct {
	TemperatureUnit string          `mapstructure:"temperature_unit"`
	Enabled         map[string]bool `mapstructure:"enabled"`
}

// DefaultConfig enables every source with Celsius display.
func DefaultConfig() Config {
	return Config{TemperatureUnit: string(Celsius)}
}

// Definitions for every known source. Base cadences mirror how quickly each
// subsystem's data actually moves; min/max bound the adaptive scheduler.
var definitions = []Definition{
	{Name: "system", DisplayName: "System Overview", Icon: "system_overview.png", BaseInterval: 10 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 2 * time.Minute},
	{Name: "storage", DisplayName: "Storage Status", Icon: "storage_status.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "network", DisplayName: "Network Statistics", Icon: "network_stats.png", BaseInterval: 20 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 3 * time.Minute},
	{Name: "services", DisplayName: "Services Status", Icon: "services_status.png", BaseInterval: 15 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 3 * time.Minute},
	{Name: "security", DisplayName: "Security Status", Icon: "security_status.png", BaseInterval: 60 * time.Second, MinInterval: 20 * time.Second, MaxInterval: 10 * time.Minute},
	{Name: "thermal", DisplayName: "Temperature Monitor", Icon: "thermal_status.png", BaseInterval: 15 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 3 * time.Minute},
	{Name: "cache", DisplayName: "SSD Cache", Icon: "cache_status.png", BaseInterval: 20 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "raid", DisplayName: "RAID Health", Icon: "raid_status.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "volume", DisplayName: "Volume Usage", Icon: "volume_status.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "ups", DisplayName: "UPS Monitor", Icon: "ups_status.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "hardware", DisplayName: "Hardware Monitor", Icon: "hardware_monitor.png", BaseInterval: 15 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 3 * time.Minute},
	{Name: "drives", DisplayName: "Drive Health", Icon: "drive_health.png", BaseInterval: 45 * time.Second, MinInterval: 15 * time.Second, MaxInterval: 8 * time.Minute},
	{Name: "power", DisplayName: "Power Management", Icon: "power_management.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "packages", DisplayName: "Package Manager", Icon: "package_manager.png", BaseInterval: 60 * time.Second, MinInterval: 20 * time.Second, MaxInterval: 10 * time.Minute},
	{Name: "sessions", DisplayName: "User Sessions", Icon: "user_sessions.png", BaseInterval: 30 * time.Second, MinInterval: 10 * time.Second, MaxInterval: 5 * time.Minute},
	{Name: "latency", DisplayName: "Appliance Latency", Icon: "network_stats.png", BaseInterval: 15 * time.Second, MinInterval: 5 * time.Second, MaxInterval: 3 * time.Minute},
}

// definition looks up a source by name. Panics on unknown names: pollers are
// registered from the table above, so a miss is a programming error.
func definition(name string) Definition {
	for _, d := range definitions {
		if d.Name == name {
			return d
		}
	}
	panic("source: unknown definition " + name)
}

// Build constructs the enabled pollers for the given appliance.
// host is the appliance address used by the ICMP latency probe.
func Build(c Caller, host string, cfg Config) []Poller {
	opts := Options{TempUnit: ParseTempUnit(cfg.TemperatureUnit)}

	all := []Poller{
		NewSystemPoller(c, opts),
		NewStoragePoller(c, opts),
		NewNetworkPoller(c, opts),
		NewServicesPoller(c, opts),
		NewSecurityPoller(c, opts),
		NewThermalPoller(c, opts),
		NewCachePoller(c, opts),
		NewRAIDPoller(c, opts),
		NewVolumePoller(c, opts),
		NewUPSPoller(c, opts),
		NewHardwarePoller(c, opts),
		NewDrivesPoller(c, opts),
		NewPowerPoller(c, opts),
		NewPackagesPoller(c, opts),
		NewSessionsPoller(c, opts),
		NewLatencyPoller(host, opts),
	}

	enabled := make([]Poller, 0, len(all))
	for _, p := range all {
		if on, ok := cfg.Enabled[p.Definition().Name]; ok && !on {
			continue
		}
		enabled = append(enabled, p)
	}
	return enabled
}
