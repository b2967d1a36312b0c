package provider

import (
	"testing"
)

func TestTencentSymbol(t *testing.T) {
	if got := tencentSymbol("600519"); got != "sh600519" {
		t.Errorf("Expected sh600519, got %s", got)
	}
	if got := tencentSymbol("000001"); got != "sz000001" {
		t.Errorf("Expected sz000001, got %s", got)
	}
	if got := tencentSymbol("300750"); got != "sz300750" {
		t.Errorf("Expected sz300750, got %s", got)
	}
}

func TestKlineField(t *testing.T) {
	if v, ok := klineField("10.55"); !ok || v != 10.55 {
		t.Errorf("Expected 10.55 from string, got %f ok=%v", v, ok)
	}
	if v, ok := klineField(123.0); !ok || v != 123.0 {
		t.Errorf("Expected 123.0 from float, got %f ok=%v", v, ok)
	}
	if _, ok := klineField("n/a"); ok {
		t.Error("Expected non-numeric string to fail")
	}
	if _, ok := klineField(nil); ok {
		t.Error("Expected nil to fail")
	}
}

func TestSinaSymbol(t *testing.T) {
	if got := sinaSymbol("600519"); got != "sh600519" {
		t.Errorf("Expected sh600519, got %s", got)
	}
	if got := sinaSymbol("000001"); got != "sz000001" {
		t.Errorf("Expected sz000001, got %s", got)
	}
}

func TestFallbackProviderFiltersUnavailable(t *testing.T) {
	f := NewFallbackProvider()
	if f.IsAvailable() {
		t.Error("Expected empty fallback chain to be unavailable")
	}
}
