package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/HerbHall/naspulse/internal/dsm"
)

// fakeCaller serves canned payloads keyed by "api/method".
type fakeCaller struct {
	payloads map[string]string
	err      error
}

func (f *fakeCaller) Call(_ context.Context, api, method string, _ int, _ url.Values) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.payloads[api+"/"+method]
	if !ok {
		return nil, &dsm.APIError{API: api, Method: method, Code: 101}
	}
	return json.RawMessage(body), nil
}

const (
	infoHealthy = `{"model":"DS920+","firmware_ver":"DSM 7.2","up_time":"26:3:40","sys_temp":45,"fan_status":"normal","ext_power_status":0}`
	utilLow     = `{"cpu":{"user_load":10,"system_load":5},"memory":{"real_usage":40},"network":[{"device":"total","rx":"1048576","tx":2097152},{"device":"eth0","rx":"1048576","tx":2097152}]}`
	utilHot     = `{"cpu":{"user_load":80,"system_load":15},"memory":{"real_usage":40},"network":[]}`
)

func TestSystemPoller(t *testing.T) {
	tests := []struct {
		name       string
		info, util string
		want       Health
	}{
		{"all nominal", infoHealthy, utilLow, HealthHealthy},
		{"cpu critical", infoHealthy, utilHot, HealthCritical},
		{"memory warning", infoHealthy, `{"cpu":{"user_load":10,"system_load":5},"memory":{"real_usage":88},"network":[]}`, HealthWarning},
		{"temp critical", `{"model":"DS920+","up_time":"1:0:0","sys_temp":85}`, utilLow, HealthCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCaller{payloads: map[string]string{
				"SYNO.Core.System/info":            tt.info,
				"SYNO.Core.System.Utilization/get": tt.util,
			}}
			r, err := NewSystemPoller(c, Options{TempUnit: Celsius}).Poll(context.Background())
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if r.Health != tt.want {
				t.Errorf("health = %v, want %v", r.Health, tt.want)
			}
			if len([]rune(r.Title)) > DisplayWidth || len([]rune(r.Detail)) > DisplayWidth {
				t.Errorf("display lines exceed %d runes: %q / %q", DisplayWidth, r.Title, r.Detail)
			}
		})
	}
}

func TestSystemPoller_PropagatesCallError(t *testing.T) {
	c := &fakeCaller{err: &dsm.NetworkError{Op: "GET", Err: errors.New("refused")}}
	_, err := NewSystemPoller(c, Options{}).Poll(context.Background())
	if !dsm.IsNetwork(err) {
		t.Fatalf("want NetworkError, got %v", err)
	}
}

func TestStoragePoller(t *testing.T) {
	payload := `{
		"volumes":[
			{"id":"volume_1","status":"normal","size":{"total":"1000","used":"500"}},
			{"id":"volume_2","status":"degraded","size":{"total":"1000","used":"900"}}
		],
		"disks":[{"id":"sda","status":"normal","smart_status":"normal","temp":40}]
	}`
	c := &fakeCaller{payloads: map[string]string{"SYNO.Storage.CGI.Storage/load_info": payload}}
	r, err := NewStoragePoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if r.Health != HealthWarning {
		t.Errorf("health = %v, want warning (degraded volume)", r.Health)
	}
	if got := r.Metrics["total_bytes"].(int64); got != 2000 {
		t.Errorf("total_bytes = %d, want 2000 (string sizes parsed)", got)
	}
}

func TestVolumeHealth(t *testing.T) {
	tests := []struct {
		status string
		want   Health
	}{
		{"normal", HealthHealthy},
		{"Normal", HealthHealthy},
		{"degraded", HealthWarning},
		{"background", HealthWarning},
		{"crashed", HealthCritical},
		{"", HealthCritical},
	}
	for _, tt := range tests {
		if got := volumeHealth(tt.status); got != tt.want {
			t.Errorf("volumeHealth(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRAIDPoller(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Health
	}{
		{
			"healthy array",
			`{"storagePools":[{"status":"normal","device_type":"raid_5","disks":["sda","sdb","sdc"]}]}`,
			HealthHealthy,
		},
		{
			"rebuilding is warning",
			`{"storagePools":[{"status":"rebuilding","device_type":"raid_5","disks":["sda","sdb"]}]}`,
			HealthWarning,
		},
		{
			"crashed is critical",
			`{"storagePools":[{"status":"crashed","device_type":"raid_1","disks":["sda","sdb"]}]}`,
			HealthCritical,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCaller{payloads: map[string]string{"SYNO.Storage.CGI.Storage/load_info": tt.payload}}
			r, err := NewRAIDPoller(c, Options{}).Poll(context.Background())
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if r.Health != tt.want {
				t.Errorf("health = %v, want %v", r.Health, tt.want)
			}
		})
	}
}

func TestRAIDLevel(t *testing.T) {
	if got := raidLevel("raid_5"); got != "5" {
		t.Errorf("raidLevel(raid_5) = %q", got)
	}
	if got := raidLevel("shr"); got != "SHR" {
		t.Errorf("raidLevel(shr) = %q", got)
	}
}

func TestCachePoller_Disabled(t *testing.T) {
	c := &fakeCaller{payloads: map[string]string{"SYNO.Storage.CGI.Storage/load_info": `{"volumes":[],"disks":[]}`}}
	r, err := NewCachePoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if r.Health != HealthHealthy {
		t.Errorf("no cache should be healthy, got %v", r.Health)
	}
	if r.Metrics["cache_enabled"].(bool) {
		t.Error("cache_enabled = true, want false")
	}
}

func TestSecurityPoller(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Health
	}{
		{"safe", `{"sysStatus":"safe","sysProgress":100}`, HealthHealthy},
		{"danger", `{"sysStatus":"danger","items":{"update":{"fail":{"critical":2}}}}`, HealthCritical},
		{"out of date", `{"sysStatus":"outOfDate"}`, HealthWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCaller{payloads: map[string]string{"SYNO.Core.SecurityScan.Status/system_get": tt.payload}}
			r, err := NewSecurityPoller(c, Options{}).Poll(context.Background())
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if r.Health != tt.want {
				t.Errorf("health = %v, want %v", r.Health, tt.want)
			}
		})
	}
}

func TestUPSPoller(t *testing.T) {
	t.Run("not detected", func(t *testing.T) {
		c := &fakeCaller{payloads: map[string]string{"SYNO.Core.System/info": infoHealthy}}
		r, err := NewUPSPoller(c, Options{}).Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if r.Health != HealthHealthy || r.Metrics["ups_present"].(bool) {
			t.Errorf("absent UPS should be healthy/not present, got %v %v", r.Health, r.Metrics["ups_present"])
		}
	})

	t.Run("low battery critical", func(t *testing.T) {
		payload := `{"model":"DS920+","up_time":"1:0:0","sys_temp":45,
			"ups_info":{"model":"APC Back-UPS","battery_charge":15,"runtime_minutes":4,"load_percent":60}}`
		c := &fakeCaller{payloads: map[string]string{"SYNO.Core.System/info": payload}}
		r, err := NewUPSPoller(c, Options{}).Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if r.Health != HealthCritical {
			t.Errorf("health = %v, want critical at 15%% charge", r.Health)
		}
	})
}

func TestServicesPoller(t *testing.T) {
	payload := `{"service":[
		{"service_id":"ssh","service":"SSH","enable_status":"enabled"},
		{"service_id":"nfs","service":"NFS","enable_status":"disabled"},
		{"service_id":"pkg-Docker","service":"Docker","enable_status":"static"}
	]}`
	c := &fakeCaller{payloads: map[string]string{"SYNO.Core.Service/get": payload}}
	r, err := NewServicesPoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := r.Metrics["enabled_services"].(int); got != 1 {
		t.Errorf("enabled = %d, want 1", got)
	}
	if got := r.Metrics["static_services"].(int); got != 1 {
		t.Errorf("static = %d, want 1", got)
	}
	if got := r.Metrics["package_services"].(int); got != 1 {
		t.Errorf("packages = %d, want 1", got)
	}
}

func TestNetworkPoller_TotalDevice(t *testing.T) {
	c := &fakeCaller{payloads: map[string]string{
		"SYNO.Core.System.Utilization/get": utilLow,
		"SYNO.Core.Network/get":            `{"nif":[{"ifname":"eth0","ip":"192.168.1.10"},{"ifname":"eth1","ip":"192.168.1.11"}]}`,
	}}
	r, err := NewNetworkPoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := r.Metrics["rx_bytes_per_sec"].(int64); got != 1048576 {
		t.Errorf("rx = %d, want total-device value 1048576", got)
	}
	if got := r.Metrics["interface_count"].(int); got != 2 {
		t.Errorf("interfaces = %d, want 2", got)
	}
}

func TestPackagesPoller_BrokenIsWarning(t *testing.T) {
	payload := `{"packages":[
		{"id":"Docker","name":"Docker","version":"24.0","status":"running"},
		{"id":"Plex","name":"Plex","version":"1.40","status":"broken"}
	]}`
	c := &fakeCaller{payloads: map[string]string{"SYNO.Core.Package/list": payload}}
	r, err := NewPackagesPoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if r.Health != HealthWarning {
		t.Errorf("health = %v, want warning", r.Health)
	}
}

func TestSessionsPoller(t *testing.T) {
	payload := `{"items":[
		{"who":"admin","from":"192.168.1.5","descr":"DSM"},
		{"who":"admin","from":"192.168.1.6","descr":"SMB"},
		{"who":"guest","from":"192.168.1.7","descr":"AFP"}
	]}`
	c := &fakeCaller{payloads: map[string]string{"SYNO.Core.CurrentConnection/get": payload}}
	r, err := NewSessionsPoller(c, Options{}).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := r.Metrics["active_connections"].(int); got != 3 {
		t.Errorf("connections = %d, want 3", got)
	}
	if got := r.Metrics["unique_users"].(int); got != 2 {
		t.Errorf("users = %d, want 2", got)
	}
}

func TestFetch_MalformedPayloadIsParseError(t *testing.T) {
	c := &fakeCaller{payloads: map[string]string{"SYNO.Core.System/info": `{"sys_temp":"not a number"}`}}
	_, err := NewThermalPoller(c, Options{}).Poll(context.Background())
	var pe *dsm.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if pe.Source != "thermal" {
		t.Errorf("ParseError.Source = %q, want thermal", pe.Source)
	}
}

func TestBuild_FiltersDisabledSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = map[string]bool{"ups": false, "latency": false}
	pollers := Build(&fakeCaller{}, "nas.local", cfg)
	if len(pollers) != len(definitions)-2 {
		t.Fatalf("got %d pollers, want %d", len(pollers), len(definitions)-2)
	}
	for _, p := range pollers {
		name := p.Definition().Name
		if name == "ups" || name == "latency" {
			t.Errorf("disabled source %q still built", name)
		}
	}
}

func TestDefinitionsHaveSaneBounds(t *testing.T) {
	for _, d := range definitions {
		if d.MinInterval <= 0 || d.MinInterval > d.BaseInterval || d.BaseInterval > d.MaxInterval {
			t.Errorf("%s: bad interval bounds min=%v base=%v max=%v", d.Name, d.MinInterval, d.BaseInterval, d.MaxInterval)
		}
	}
}
