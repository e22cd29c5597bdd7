package source

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/HerbHall/naspulse/internal/dsm"
)

// Wire shapes for the appliance payloads shared by several pollers.
// DSM serializes sizes as decimal strings, hence flexInt.

// flexInt accepts both JSON numbers and numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type systemInfo struct {
	Model          string   `json:"model"`
	FirmwareVer    string   `json:"firmware_ver"`
	UpTime         string   `json:"up_time"`
	SysTemp        float64  `json:"sys_temp"`
	FanStatus      string   `json:"fan_status"`
	ExtPowerStatus int      `json:"ext_power_status"`
	UPSInfo        *upsInfo `json:"ups_info"`
}

type upsInfo struct {
	Model          string  `json:"model"`
	BatteryCharge  float64 `json:"battery_charge"`
	RuntimeMinutes float64 `json:"runtime_minutes"`
	LoadPercent    float64 `json:"load_percent"`
}

type utilization struct {
	CPU struct {
		UserLoad   float64 `json:"user_load"`
		SystemLoad float64 `json:"system_load"`
	} `json:"cpu"`
	Memory struct {
		RealUsage float64 `json:"real_usage"`
	} `json:"memory"`
	Network []struct {
		Device string  `json:"device"`
		RX     flexInt `json:"rx"`
		TX     flexInt `json:"tx"`
	} `json:"network"`
}

type sizeInfo struct {
	Total    flexInt `json:"total"`
	Used     flexInt `json:"used"`
	Occupied flexInt `json:"occupied"`
}

type storageInfo struct {
	Volumes      []volumeEntry `json:"volumes"`
	Disks        []diskEntry   `json:"disks"`
	StoragePools []poolEntry   `json:"storagePools"`
	SSDCaches    []cacheEntry  `json:"ssdCaches"`
	SharedCaches []cacheEntry  `json:"sharedCaches"`
}

type volumeEntry struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	DeviceType string   `json:"device_type"`
	Size       sizeInfo `json:"size"`
}

type diskEntry struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	SmartStatus string  `json:"smart_status"`
	Temp        float64 `json:"temp"`
	IsSSD       bool    `json:"isSsd"`
	UsedBy      string  `json:"used_by"`
}

type poolEntry struct {
	Status     string   `json:"status"`
	DeviceType string   `json:"device_type"`
	Disks      []string `json:"disks"`
}

type cacheEntry struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	DeviceType  string   `json:"device_type"`
	Size        sizeInfo `json:"size"`
	HitRate     float64  `json:"hit_rate"`
	HitRateWrite float64 `json:"hit_rate_write"`
}

type serviceEntry struct {
	ServiceID    string `json:"service_id"`
	Service      string `json:"service"`
	EnableStatus string `json:"enable_status"`
}

type servicesData struct {
	Service []serviceEntry `json:"service"`
}

// fetch issues one call and unmarshals the payload, tagging decode failures
// with the owning source's name for diagnosis.
func fetch[T any](ctx context.Context, c Caller, sourceName, api, method string, version int) (*T, error) {
	raw, err := c.Call(ctx, api, method, version, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &dsm.ParseError{Source: sourceName, Err: err}
	}
	return &out, nil
}

func fetchSystemInfo(ctx context.Context, c Caller, sourceName string) (*systemInfo, error) {
	return fetch[systemInfo](ctx, c, sourceName, "SYNO.Core.System", "info", 1)
}

func fetchUtilization(ctx context.Context, c Caller, sourceName string) (*utilization, error) {
	return fetch[utilization](ctx, c, sourceName, "SYNO.Core.System.Utilization", "get", 1)
}

func fetchStorageInfo(ctx context.Context, c Caller, sourceName string) (*storageInfo, error) {
	return fetch[storageInfo](ctx, c, sourceName, "SYNO.Storage.CGI.Storage", "load_info", 1)
}

func fetchServices(ctx context.Context, c Caller, sourceName string) (*servicesData, error) {
	return fetch[servicesData](ctx, c, sourceName, "SYNO.Core.Service", "get", 1)
}
