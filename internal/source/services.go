package source

import (
	"context"
	"fmt"
	"strings"
)

// ServicesPoller counts enabled system services and installed packages.
type ServicesPoller struct {
	c    Caller
	opts Options
}

func NewServicesPoller(c Caller, opts Options) *ServicesPoller {
	return &ServicesPoller{c: c, opts: opts}
}

func (p *ServicesPoller) Definition() Definition { return definition("services") }

func (p *ServicesPoller) Poll(ctx context.Context) (*Reading, error) {
	data, err := fetchServices(ctx, p.c, "services")
	if err != nil {
		return nil, err
	}

	var enabled, static, packages int
	for _, s := range data.Service {
		// Package-provided services carry a "pkg-" prefixed id.
		if strings.HasPrefix(s.ServiceID, "pkg-") {
			packages++
		}
		switch strings.ToLower(s.EnableStatus) {
		case "enabled":
			enabled++
		case "static":
			static++
		}
	}

	titleLine := fmt.Sprintf("Services - %d active", enabled+static)
	detail := joinDetail(
		fmt.Sprintf("Enabled: %d", enabled),
		fmt.Sprintf("Static: %d", static),
		fmt.Sprintf("Packages: %d", packages),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: HealthHealthy,
		Metrics: map[string]any{
			"total_services":   len(data.Service),
			"enabled_services": enabled,
			"static_services":  static,
			"package_services": packages,
		},
	}, nil
}
