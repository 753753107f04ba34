package persistence

import (
	"encoding/json"
	"testing"
)

func TestRegisterProvider(t *testing.T) {
	var seen PluginConfig
	mockFactory := func(config PluginConfig) (PluginPersistence, error) {
		seen = config
		return nil, nil
	}

	RegisterProvider("test", mockFactory)

	providers := ListProviders()
	found := false
	for _, p := range providers {
		if p == "test" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected to find 'test' provider in list, got: %v", providers)
	}

	if _, err := NewPersistence(ProviderConfig{Type: "test"}, PluginConfig{}); err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	if string(seen.Config) != "{}" {
		t.Errorf("empty provider config should default to {}, got %q", seen.Config)
	}
	if seen.Logger == nil {
		t.Error("expected default logger")
	}

	raw := json.RawMessage(`{"addr":"localhost:6379"}`)
	if _, err := NewPersistence(ProviderConfig{Type: "test", Config: raw}, PluginConfig{}); err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	if string(seen.Config) != string(raw) {
		t.Errorf("provider config not forwarded: %q", seen.Config)
	}
}

func TestNewPersistenceUnknownProvider(t *testing.T) {
	cfg := ProviderConfig{
		Type:   "unknown_provider",
		Config: []byte("{}"),
	}

	_, err := NewPersistence(cfg, PluginConfig{})
	if err == nil {
		t.Error("Expected error for unknown provider, got nil")
	}
}
