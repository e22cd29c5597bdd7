package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/dsm"
)

type fakeCaller struct {
	lastAPI    string
	lastMethod string
	lastParams url.Values
	err        error
}

func (f *fakeCaller) Call(_ context.Context, api, method string, _ int, params url.Values) (json.RawMessage, error) {
	f.lastAPI, f.lastMethod, f.lastParams = api, method, params
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

func TestExecuteKnownCommands(t *testing.T) {
	tests := []struct {
		cmd        string
		wantAPI    string
		wantMethod string
	}{
		{"restart", "SYNO.Core.System", "reboot"},
		{"shutdown", "SYNO.Core.System", "shutdown"},
		{"beep_on", "SYNO.Core.Hardware.BeepControl", "set"},
		{"beep_off", "SYNO.Core.Hardware.BeepControl", "set"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			c := &fakeCaller{}
			ack, err := NewExecutor(c, zap.NewNop()).Execute(context.Background(), tt.cmd, nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if c.lastAPI != tt.wantAPI || c.lastMethod != tt.wantMethod {
				t.Errorf("called %s/%s, want %s/%s", c.lastAPI, c.lastMethod, tt.wantAPI, tt.wantMethod)
			}
			if ack.ID == "" || ack.Command != tt.cmd || ack.IssuedAt.IsZero() {
				t.Errorf("incomplete ack: %+v", ack)
			}
		})
	}
}

func TestExecuteBeepParams(t *testing.T) {
	c := &fakeCaller{}
	if _, err := NewExecutor(c, zap.NewNop()).Execute(context.Background(), "beep_off", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := c.lastParams.Get("beep"); got != "false" {
		t.Errorf("beep param = %q, want false", got)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	c := &fakeCaller{}
	_, err := NewExecutor(c, zap.NewNop()).Execute(context.Background(), "self_destruct", nil)
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("want ErrUnsupportedCommand, got %v", err)
	}
	if c.lastAPI != "" {
		t.Error("unknown command reached the appliance")
	}
}

func TestExecutePassesThroughApplianceErrors(t *testing.T) {
	authErr := &dsm.AuthError{Code: 400, Permanent: true}
	c := &fakeCaller{err: authErr}
	_, err := NewExecutor(c, zap.NewNop()).Execute(context.Background(), "shutdown", nil)

	var ae *dsm.AuthError
	if !errors.As(err, &ae) || !ae.Permanent {
		t.Fatalf("want the AuthError untouched, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	got := Supported()
	if len(got) != 4 {
		t.Fatalf("Supported() = %v, want 4 commands", got)
	}
}
