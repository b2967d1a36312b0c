package detector

import (
	"reflect"
	"testing"
)

func TestRegistryOrder(t *testing.T) {
	want := []string{"reversal", "volume_breakout", "shrink_breakout"}
	if got := List(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected canonical order %v, got %v", want, got)
	}
}

func TestRegistryAll(t *testing.T) {
	detectors := All(DefaultConfig())
	if len(detectors) != 3 {
		t.Fatalf("Expected 3 detectors, got %d", len(detectors))
	}
	for i, name := range List() {
		if detectors[i].Name() != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, detectors[i].Name())
		}
	}
}

func TestRegistryGet(t *testing.T) {
	d, err := Get("reversal", DefaultConfig())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.Name() != "reversal" {
		t.Errorf("Expected reversal, got %s", d.Name())
	}

	if _, err := Get("momentum", DefaultConfig()); err == nil {
		t.Error("Expected unknown detector name to fail")
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(120); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
	if got := clampScore(-5); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
	if got := clampScore(75.5); got != 76 {
		t.Errorf("Expected 76, got %d", got)
	}
}

func TestLinearMap(t *testing.T) {
	if got := linearMap(27.5, 15, 40, 0, 15); got != 7.5 {
		t.Errorf("Expected midpoint 7.5, got %f", got)
	}
	// Clamped below and above
	if got := linearMap(10, 15, 40, 0, 15); got != 0 {
		t.Errorf("Expected 0 below the range, got %f", got)
	}
	if got := linearMap(50, 15, 40, 0, 15); got != 15 {
		t.Errorf("Expected 15 above the range, got %f", got)
	}
	// Reversed range: smaller input earns more
	if got := linearMap(5, 10, 5, 0, 15); got != 15 {
		t.Errorf("Expected 15 on a reversed range, got %f", got)
	}
	if got := linearMap(10, 10, 5, 0, 15); got != 0 {
		t.Errorf("Expected 0 on a reversed range, got %f", got)
	}
}
