package config

import (
	"strings"
	"testing"
	"time"
)

func validYAML() string {
	return `
api:
  base_url: https://api.example.com
  token: secret
account:
  user_id: user-1
  employee_id: emp-1
  organization_id: org-1
  tenant_id: ten-1
`
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML()))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := cfg.Tracking.CollectionIntervalSeconds; got != 60 {
		t.Errorf("collection interval = %d, want 60", got)
	}
	if got := cfg.Tracking.ScreenshotIntervalMinutes; got != 5 {
		t.Errorf("screenshot interval = %d, want 5", got)
	}
	if got := cfg.Tracking.MonitorMode; got != MonitorAll {
		t.Errorf("monitor mode = %q, want %q", got, MonitorAll)
	}
	if got := cfg.Sync.PollIntervalMs; got != 5000 {
		t.Errorf("poll interval = %d, want 5000", got)
	}
	if got := cfg.Sync.ReconcileIntervalSeconds; got != 1800 {
		t.Errorf("reconcile interval = %d, want 1800", got)
	}
	if got := cfg.Storage.DBPath; got != "timedock.db" {
		t.Errorf("db path = %q", got)
	}
}

func TestParse_Durations(t *testing.T) {
	cfg, err := Parse([]byte(validYAML()))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := cfg.CollectionInterval(); got != 60*time.Second {
		t.Errorf("CollectionInterval() = %s", got)
	}
	if got := cfg.ScreenshotInterval(); got != 5*time.Minute {
		t.Errorf("ScreenshotInterval() = %s", got)
	}
	if got := cfg.PollInterval(); got != 5*time.Second {
		t.Errorf("PollInterval() = %s", got)
	}
	if got := cfg.FlushesPerScreenshot(); got != 5 {
		t.Errorf("FlushesPerScreenshot() = %d, want 5", got)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing base url",
			yaml: "account:\n  employee_id: e\n  organization_id: o\n  tenant_id: t\n",
			want: "api.base_url is required",
		},
		{
			name: "missing employee",
			yaml: "api:\n  base_url: https://x\naccount:\n  organization_id: o\n  tenant_id: t\n",
			want: "account.employee_id is required",
		},
		{
			name: "bad screenshot interval",
			yaml: validYAML() + "tracking:\n  screenshot_interval_minutes: 7\n",
			want: "screenshot_interval_minutes must be 1, 5 or 10",
		},
		{
			name: "bad monitor mode",
			yaml: validYAML() + "tracking:\n  monitor_mode: primary\n",
			want: "monitor_mode",
		},
		{
			name: "screenshot not a multiple of collection",
			yaml: validYAML() + "tracking:\n  collection_interval_seconds: 45\n  screenshot_interval_minutes: 5\n",
			want: "multiple of the collection interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_ScreenshotMultipleAccepted(t *testing.T) {
	yaml := validYAML() + "tracking:\n  collection_interval_seconds: 60\n  screenshot_interval_minutes: 10\n"
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := cfg.FlushesPerScreenshot(); got != 10 {
		t.Errorf("FlushesPerScreenshot() = %d, want 10", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("api: [not a map"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv_TokenOverride(t *testing.T) {
	t.Setenv("TIMEDOCK_API_TOKEN", "env-token")

	cfg, err := Parse([]byte(validYAML()))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	cfg.ApplyEnv()

	if cfg.API.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.API.Token)
	}
}
