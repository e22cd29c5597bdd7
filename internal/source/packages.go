package source

import (
	"context"
	"fmt"
	"strings"
)

type packageList struct {
	Packages []packageEntry `json:"packages"`
	Total    int            `json:"total"`
}

type packageEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// PackagesPoller counts installed packages and how many are running.
type PackagesPoller struct {
	c    Caller
	opts Options
}

func NewPackagesPoller(c Caller, opts Options) *PackagesPoller {
	return &PackagesPoller{c: c, opts: opts}
}

func (p *PackagesPoller) Definition() Definition { return definition("packages") }

func (p *PackagesPoller) Poll(ctx context.Context) (*Reading, error) {
	data, err := fetch[packageList](ctx, p.c, "packages", "SYNO.Core.Package", "list", 1)
	if err != nil {
		return nil, err
	}

	var running, stopped, broken int
	for _, pkg := range data.Packages {
		switch strings.ToLower(pkg.Status) {
		case "running":
			running++
		case "stop", "stopped":
			stopped++
		case "broken", "corrupted":
			broken++
		}
	}

	health := HealthHealthy
	if broken > 0 {
		health = HealthWarning
	}

	titleLine := fmt.Sprintf("Packages - %d installed", len(data.Packages))
	detail := joinDetail(
		fmt.Sprintf("Running: %d", running),
		fmt.Sprintf("Stopped: %d", stopped),
	)
	if broken > 0 {
		detail = joinDetail(detail, fmt.Sprintf("Broken: %d", broken))
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"installed_packages": len(data.Packages),
			"running_packages":   running,
			"stopped_packages":   stopped,
			"broken_packages":    broken,
		},
	}, nil
}
