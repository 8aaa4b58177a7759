package utils

import (
	"testing"
)

type sampleConfig struct {
	Format string `json:"format"`
	Size   int    `json:"size"`
}

func TestUnmarshalConfigFromMap(t *testing.T) {
	var target sampleConfig
	raw := map[string]interface{}{"format": "json", "size": 3}

	if err := UnmarshalConfig(raw, &target); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if target.Format != "json" || target.Size != 3 {
		t.Fatalf("unexpected config %+v", target)
	}
}

func TestUnmarshalConfigFromPointer(t *testing.T) {
	var target sampleConfig
	src := &sampleConfig{Format: "console", Size: 1}

	if err := UnmarshalConfig(src, &target); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if target != *src {
		t.Fatalf("expected %+v, got %+v", *src, target)
	}
}

func TestUnmarshalConfigNil(t *testing.T) {
	var target sampleConfig
	if err := UnmarshalConfig(nil, &target); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
