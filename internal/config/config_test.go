package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ClientTimeout != 3*time.Second {
		t.Errorf("ClientTimeout = %s, want 3s", cfg.ClientTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BreakerThresholdPct != 50 || cfg.BreakerVolume != 5 {
		t.Errorf("breaker defaults = %d%%/%d, want 50%%/5", cfg.BreakerThresholdPct, cfg.BreakerVolume)
	}
	if cfg.BreakerCoolDown != 30*time.Second {
		t.Errorf("BreakerCoolDown = %s, want 30s", cfg.BreakerCoolDown)
	}
	if cfg.GremlinEnabled || cfg.ChaosEnabled {
		t.Error("fault injection must default off")
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty (publishing disabled)", cfg.KafkaBrokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_MS", "1500")
	t.Setenv("GREMLIN_ENABLED", "true")
	t.Setenv("GREMLIN_EVERY_NTH_REQUEST", "7")
	t.Setenv("CHAOS_ENABLED", "true")
	t.Setenv("CHAOS_CRASH_PROBABILITY", "0.4")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()
	if cfg.ClientTimeout != 1500*time.Millisecond {
		t.Errorf("ClientTimeout = %s, want 1.5s", cfg.ClientTimeout)
	}
	if !cfg.GremlinEnabled || cfg.GremlinEveryNth != 7 {
		t.Errorf("gremlin = %v/%d", cfg.GremlinEnabled, cfg.GremlinEveryNth)
	}
	if !cfg.ChaosEnabled || cfg.ChaosProbability != 0.4 {
		t.Errorf("chaos = %v/%v", cfg.ChaosEnabled, cfg.ChaosProbability)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "k1:9092" || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_MS", "soon")
	t.Setenv("CLIENT_MAX_RETRIES", "-")
	t.Setenv("CHAOS_CRASH_PROBABILITY", "often")

	cfg := Load()
	if cfg.ClientTimeout != 3*time.Second || cfg.MaxRetries != 3 || cfg.ChaosProbability != 0.1 {
		t.Errorf("garbage env did not fall back to defaults: %+v", cfg)
	}
}
