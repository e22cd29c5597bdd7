package source

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/HerbHall/naspulse/internal/dsm"
)

// LatencyPoller probes the appliance with ICMP echo and classifies the
// round-trip time. Unlike the other pollers it bypasses the DSM API, so
// it keeps working while the web interface is down.
type LatencyPoller struct {
	host    string
	opts    Options
	count   int
	timeout time.Duration
}

func NewLatencyPoller(host string, opts Options) *LatencyPoller {
	return &LatencyPoller{
		host:    host,
		opts:    opts,
		count:   3,
		timeout: 4 * time.Second,
	}
}

func (p *LatencyPoller) Definition() Definition { return definition("latency") }

func (p *LatencyPoller) Poll(ctx context.Context) (*Reading, error) {
	pinger, err := probing.NewPinger(p.host)
	if err != nil {
		return nil, &dsm.NetworkError{Op: "ping " + p.host, Err: err}
	}
	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case err = <-done:
		if err != nil {
			return nil, &dsm.NetworkError{Op: "ping " + p.host, Err: err}
		}
	case <-ctx.Done():
		pinger.Stop()
		return nil, &dsm.NetworkError{Op: "ping " + p.host, Err: ctx.Err()}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		t, d := twoLines("Latency - Unreachable", fmt.Sprintf("No reply from %s", p.host))
		return &Reading{
			Title:  t,
			Detail: d,
			Health: HealthCritical,
			Metrics: map[string]any{
				"reachable":   false,
				"packet_loss": 100.0,
			},
		}, nil
	}

	avgMs := float64(stats.AvgRtt) / float64(time.Millisecond)
	health := classifyHighIsBad(avgMs, latencyWarnMs, latencyCritMs)
	if stats.PacketLoss > 0 {
		health = Worst(health, HealthWarning)
	}

	titleLine := fmt.Sprintf("Latency - %.1f ms", avgMs)
	detail := joinDetail(
		fmt.Sprintf("Min: %.1f ms", float64(stats.MinRtt)/float64(time.Millisecond)),
		fmt.Sprintf("Max: %.1f ms", float64(stats.MaxRtt)/float64(time.Millisecond)),
		fmt.Sprintf("Loss: %.0f%%", stats.PacketLoss),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: health,
		Metrics: map[string]any{
			"reachable":   true,
			"avg_rtt_ms":  avgMs,
			"min_rtt_ms":  float64(stats.MinRtt) / float64(time.Millisecond),
			"max_rtt_ms":  float64(stats.MaxRtt) / float64(time.Millisecond),
			"packet_loss": stats.PacketLoss,
		},
	}, nil
}
