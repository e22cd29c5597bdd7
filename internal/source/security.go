package source

import (
	"context"
	"fmt"
	"strings"
)

type securityStatus struct {
	SysStatus    string                  `json:"sysStatus"`
	SysProgress  int                     `json:"sysProgress"`
	LastScanTime string                  `json:"lastScanTime"`
	Items        map[string]securityItem `json:"items"`
}

type securityItem struct {
	Fail map[string]int `json:"fail"`
}

// SecurityPoller reads the DSM security advisor scan status.
type SecurityPoller struct {
	c    Caller
	opts Options
}

func NewSecurityPoller(c Caller, opts Options) *SecurityPoller {
	return &SecurityPoller{c: c, opts: opts}
}

func (p *SecurityPoller) Definition() Definition { return definition("security") }

func (p *SecurityPoller) Poll(ctx context.Context) (*Reading, error) {
	data, err := fetch[securityStatus](ctx, p.c, "security", "SYNO.Core.SecurityScan.Status", "system_get", 1)
	if err != nil {
		return nil, err
	}

	issues := 0
	for _, item := range data.Items {
		for _, n := range item.Fail {
			issues += n
		}
	}

	var health Health
	switch strings.ToLower(data.SysStatus) {
	case "safe":
		health = HealthHealthy
	case "danger":
		health = HealthCritical
	default:
		// "outOfDate", scan in progress, or anything unrecognized.
		health = HealthWarning
	}

	titleLine := fmt.Sprintf("Security - %s", title(health.String()))
	detail := fmt.Sprintf("Issues: %d", issues)
	if data.SysProgress > 0 && data.SysProgress < 100 {
		detail = joinDetail(detail, fmt.Sprintf("Scanning: %d%%", data.SysProgress))
	} else if data.LastScanTime != "" {
		detail = joinDetail(detail, "Last scan: "+data.LastScanTime)
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"scan_status":   data.SysStatus,
			"issue_count":   issues,
			"scan_progress": data.SysProgress,
		},
	}, nil
}
