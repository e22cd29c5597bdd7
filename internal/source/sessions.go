package source

import (
	"context"
	"fmt"
)

type connectionList struct {
	Items []connectionEntry `json:"items"`
	Total int               `json:"total"`
}

type connectionEntry struct {
	Who   string `json:"who"`
	From  string `json:"from"`
	Descr string `json:"descr"`
}

// SessionsPoller counts active user connections to the appliance.
type SessionsPoller struct {
	c    Caller
	opts Options
}

func NewSessionsPoller(c Caller, opts Options) *SessionsPoller {
	return &SessionsPoller{c: c, opts: opts}
}

func (p *SessionsPoller) Definition() Definition { return definition("sessions") }

func (p *SessionsPoller) Poll(ctx context.Context) (*Reading, error) {
	data, err := fetch[connectionList](ctx, p.c, "sessions", "SYNO.Core.CurrentConnection", "get", 1)
	if err != nil {
		return nil, err
	}

	users := make(map[string]struct{}, len(data.Items))
	for _, item := range data.Items {
		if item.Who != "" {
			users[item.Who] = struct{}{}
		}
	}

	titleLine := fmt.Sprintf("Sessions - %d active", len(data.Items))
	detail := fmt.Sprintf("Users: %d", len(users))
	if len(data.Items) > 0 {
		detail = joinDetail(detail, fmt.Sprintf("Connections: %d", len(data.Items)))
	}

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: HealthHealthy,
		Metrics: map[string]any{
			"active_connections": len(data.Items),
			"unique_users":       len(users),
		},
	}, nil
}
