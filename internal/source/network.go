package source

import (
	"context"
	"fmt"
)

type networkConfig struct {
	Nif []struct {
		Ifname string `json:"ifname"`
		IP     string `json:"ip"`
	} `json:"nif"`
}

// NetworkPoller reports aggregate throughput and interface count.
type NetworkPoller struct {
	c    Caller
	opts Options
}

func NewNetworkPoller(c Caller, opts Options) *NetworkPoller {
	return &NetworkPoller{c: c, opts: opts}
}

func (p *NetworkPoller) Definition() Definition { return definition("network") }

func (p *NetworkPoller) Poll(ctx context.Context) (*Reading, error) {
	util, err := fetchUtilization(ctx, p.c, "network")
	if err != nil {
		return nil, err
	}
	conf, err := fetch[networkConfig](ctx, p.c, "network", "SYNO.Core.Network", "get", 1)
	if err != nil {
		return nil, err
	}

	// The utilization payload carries a synthetic "total" device that sums
	// all interfaces; per-interface entries are a fallback.
	var rx, tx int64
	found := false
	for _, n := range util.Network {
		if n.Device == "total" {
			rx, tx = int64(n.RX), int64(n.TX)
			found = true
			break
		}
	}
	if !found {
		for _, n := range util.Network {
			rx += int64(n.RX)
			tx += int64(n.TX)
		}
	}

	titleLine := fmt.Sprintf("Network - %d interfaces", len(conf.Nif))
	detail := joinDetail(
		fmt.Sprintf("RX: %s/s", formatBytes(rx)),
		fmt.Sprintf("TX: %s/s", formatBytes(tx)),
	)

	t, d := twoLines(titleLine, detail)
	return &Reading{
		Title:  t,
		Detail: d,
		Health: HealthHealthy,
		Metrics: map[string]any{
			"interface_count":    len(conf.Nif),
			"rx_bytes_per_sec":   rx,
			"tx_bytes_per_sec":   tx,
			"total_bytes_per_sec": rx + tx,
		},
	}, nil
}
