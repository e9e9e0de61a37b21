package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.MetricsPort != 9090 {
		t.Fatalf("ports = %d, %d", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.DatabasePath != "data/geocache.db" || cfg.Locale != "en-US" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Retention != 365*24*time.Hour || cfg.PruneInterval != 24*time.Hour {
		t.Fatalf("retention=%v prune=%v", cfg.Retention, cfg.PruneInterval)
	}
	if cfg.MQTTBroker != "" || cfg.MDNS {
		t.Fatal("MQTT and mDNS should be off by default")
	}
	if cfg.MQTTClientID != "" {
		t.Fatalf("client id = %q, want empty so one is generated per process", cfg.MQTTClientID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEOCACHE_HTTP_PORT", "8181")
	t.Setenv("GEOCACHE_RETENTION", "720h")
	t.Setenv("GEOCACHE_LOCALE", "he-IL")
	t.Setenv("GEOCACHE_GEOCODER_RPS", "0.5")
	t.Setenv("GEOCACHE_MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("GEOCACHE_MQTT_TOPIC_PREFIX", "/city/")
	t.Setenv("GEOCACHE_MDNS", "true")
	t.Setenv("GEOCACHE_MQTT_CLIENT_ID", "kiosk-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8181 || cfg.Retention != 720*time.Hour || cfg.Locale != "he-IL" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.GeocoderRPS != 0.5 || cfg.MQTTBroker != "tcp://localhost:1883" || !cfg.MDNS {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.MQTTClientID != "kiosk-1" {
		t.Fatalf("client id = %q, want kiosk-1", cfg.MQTTClientID)
	}
	if cfg.MQTTTopicPrefix != "city" {
		t.Fatalf("topic prefix = %q, want city", cfg.MQTTTopicPrefix)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GEOCACHE_HTTP_PORT", "eighty"},
		{"GEOCACHE_METRICS_PORT", "9o9o"},
		{"GEOCACHE_RETENTION", "a year"},
		{"GEOCACHE_RETENTION", "-1h"},
		{"GEOCACHE_GEOCODER_TIMEOUT", "soon"},
		{"GEOCACHE_GEOCODER_RPS", "0"},
		{"GEOCACHE_MAX_RESULTS", "0"},
		{"GEOCACHE_MDNS", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected an error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
