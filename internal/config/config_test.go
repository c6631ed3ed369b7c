package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func setMemoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadMemoryDefaults(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("MEMORY_SCREENINGS", "7:Heat:20, 8:Alien:50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BrokerAddr != ":8888" {
		t.Errorf("BrokerAddr = %q, want :8888", cfg.BrokerAddr)
	}
	if cfg.HoldTTL != 2*time.Minute || cfg.SweepInterval != 30*time.Second {
		t.Errorf("HoldTTL=%v SweepInterval=%v", cfg.HoldTTL, cfg.SweepInterval)
	}
	if cfg.CancelReleasesSeats {
		t.Error("CancelReleasesSeats should default to false")
	}
	if len(cfg.MemoryScreenings) != 2 || cfg.MemoryScreenings[0].ID != 7 || cfg.MemoryScreenings[1].TotalSeats != 50 {
		t.Errorf("MemoryScreenings = %+v", cfg.MemoryScreenings)
	}
}

func TestLoadMySQLReportsMissingVars(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing vars")
	}
	for _, key := range []string{"JWT_SECRET", "DB_USER", "DB_NAME"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
	if strings.Contains(err.Error(), "DB_HOST") {
		t.Errorf("error %q mentions DB_HOST which is set", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestParseScreeningsInvalid(t *testing.T) {
	for _, in := range []string{"7:Heat", "x:Heat:10", "7:Heat:0", "0:Heat:5"} {
		if _, err := ParseScreenings(in); err == nil {
			t.Errorf("ParseScreenings(%q) succeeded", in)
		}
	}
}

func TestBindFlagsOverridesEnv(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("HOLD_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--broker-addr=:9999", "--cancel-releases-seats"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.BrokerAddr != ":9999" || !cfg.CancelReleasesSeats {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.HoldTTL != 90*time.Second {
		t.Errorf("HoldTTL = %v, want env value 90s", cfg.HoldTTL)
	}
}

func TestValidateRejectsBadFlagOverrides(t *testing.T) {
	setMemoryEnv(t)
	for _, args := range [][]string{
		{"--hold-ttl=-1s"},
		{"--hold-ttl=0s"},
		{"--sweep-interval=0s"},
		{"--broker-addr="},
	} {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		cfg.BindFlags(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatalf("Parse %v: %v", args, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate accepted %v", args)
		}
	}
}

func TestNotifyTarget(t *testing.T) {
	cases := map[string]string{
		":8888":          "127.0.0.1:8888",
		"0.0.0.0:7000":   "127.0.0.1:7000",
		"broker.lan:900": "broker.lan:900",
	}
	for addr, want := range cases {
		cfg := Config{BrokerAddr: addr}
		if got := cfg.NotifyTarget(); got != want {
			t.Errorf("NotifyTarget(%q) = %q, want %q", addr, got, want)
		}
	}
	cfg := Config{BrokerAddr: ":8888", NotifyAddr: "other:1"}
	if got := cfg.NotifyTarget(); got != "other:1" {
		t.Errorf("explicit NotifyAddr ignored: %q", got)
	}
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Errorf("Capacity = %d, want 1", cfg.Capacity)
	}
	if cfg.TTL != 50*time.Second {
		t.Errorf("TTL = %v, want 50s", cfg.TTL)
	}
}
