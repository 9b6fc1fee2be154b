package config

import (
	"testing"
	"time"
)

func TestCollectGeminiKeys_Order(t *testing.T) {
	slots := map[string]string{
		"GEMINI_API_KEY_1": "slot-1",
		"GEMINI_API_KEY_3": " slot-3 ",
	}
	got := collectGeminiKeys("primary", []string{"list-a", "", "list-b"}, func(k string) string { return slots[k] })
	want := []string{"primary", "list-a", "list-b", "slot-1", "slot-3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLoad_ParsesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/callinsight")
	t.Setenv("AUTH_TOKENS", "tok-a=user-a,tok-b=user-b")
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("GEMINI_API_KEY_2", "key-2")
	t.Setenv("BULK_INTER_FILE_DELAY", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AuthTokens["tok-b"] != "user-b" {
		t.Fatalf("unexpected auth tokens: %v", cfg.AuthTokens)
	}
	if len(cfg.GeminiAPIKeys) != 2 || cfg.GeminiAPIKeys[1] != "key-2" {
		t.Fatalf("unexpected gemini keys: %v", cfg.GeminiAPIKeys)
	}
	if cfg.BulkInterFileDelay != 250*time.Millisecond {
		t.Fatalf("unexpected delay: %s", cfg.BulkInterFileDelay)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.MaxUploadBytes)
	}
	if !cfg.KafkaEnabled() {
		t.Fatal("expected kafka to be enabled")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_TOKENS", "tok=user")
	t.Setenv("GEMINI_API_KEY", "key")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}
