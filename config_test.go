package postfx

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/postfx/dof"
	"github.com/gogpu/postfx/pool"
	"github.com/gogpu/postfx/ssr"
	"github.com/gogpu/postfx/taa"
	"github.com/gogpu/postfx/tonemap"
)

func TestDecodeConfigEmpty(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.TAA != nil || cfg.DoF != nil || cfg.SSR != nil || cfg.Tonemap != nil {
		t.Errorf("effects enabled by an empty config: %+v", cfg)
	}
}

func TestDecodeConfigOverlaysDefaults(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`{
		"taa": {"mode": 3},
		"dof": {},
		"tonemap": {"filmic": {"enabled": true, "exposureBias": 0.5}},
		"pool": {"budgetMB": 128}
	}`))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}

	wantTAA := taa.DefaultSettings()
	wantTAA.Mode = taa.Standard4x
	if cfg.TAA == nil || *cfg.TAA != wantTAA {
		t.Errorf("taa = %+v, want %+v", cfg.TAA, wantTAA)
	}

	if cfg.DoF == nil || !reflect.DeepEqual(*cfg.DoF, dof.DefaultSettings()) {
		t.Errorf("dof = %+v, want defaults", cfg.DoF)
	}

	wantTone := tonemap.DefaultSettings()
	wantTone.Filmic.Enabled = true
	wantTone.Filmic.ExposureBias = 0.5
	if cfg.Tonemap == nil || !reflect.DeepEqual(*cfg.Tonemap, wantTone) {
		t.Errorf("tonemap = %+v, want %+v", cfg.Tonemap, wantTone)
	}

	if cfg.SSR != nil {
		t.Error("ssr enabled without an ssr section")
	}
	if cfg.Pool != (pool.Config{BudgetMB: 128}) {
		t.Errorf("pool = %+v", cfg.Pool)
	}
}

func TestDecodeConfigSSRPreset(t *testing.T) {
	tests := []struct {
		json string
		want func() ssr.Settings
	}{
		{`{"ssr": {}}`, ssr.DefaultSettings},
		{`{"ssr": {"preset": "performance"}}`, ssr.PerformanceSettings},
		{`{"ssr": {"preset": "high"}}`, ssr.HighQualitySettings},
		{`{"ssr": {"preset": "high", "basic": {"maxDistance": 50}}}`, func() ssr.Settings {
			s := ssr.HighQualitySettings()
			s.Basic.MaxDistance = 50
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			cfg, err := DecodeConfig(strings.NewReader(tt.json))
			if err != nil {
				t.Fatalf("DecodeConfig: %v", err)
			}
			if cfg.SSR == nil || *cfg.SSR != tt.want() {
				t.Errorf("ssr = %+v, want %+v", cfg.SSR, tt.want())
			}
		})
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown section", `{"bloom": {}}`},
		{"unknown taa key", `{"taa": {"sharpness": 1}}`},
		{"unknown nested key", `{"tonemap": {"filmic": {"gain": 2}}}`},
		{"unknown ssr key", `{"ssr": {"preset": "high", "rays": 4}}`},
		{"unknown preset", `{"ssr": {"preset": "ultra"}}`},
		{"wrong type", `{"dof": {"focusPlane": "near"}}`},
		{"malformed", `{"taa": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeConfig(strings.NewReader(tt.json)); err == nil {
				t.Error("DecodeConfig succeeded")
			}
		})
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	tm := tonemap.DefaultSettings()
	tm.Grading.Enabled = true
	tm.Grading.Saturation = 1.2
	aa := taa.DefaultSettings()
	aa.Mode = taa.SMAA2x
	refl := ssr.PresetPerformance.Settings()
	in := Config{TAA: &aa, SSR: &refl, Tonemap: &tm, Pool: pool.Config{BudgetMB: 32}}

	var buf bytes.Buffer
	if err := in.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postfx.json")
	if err := os.WriteFile(path, []byte(`{"dof": {"fStops": 2.8}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DoF == nil || cfg.DoF.FStops != 2.8 {
		t.Errorf("dof = %+v, want fStops 2.8", cfg.DoF)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadConfig(missing) = %v, want a not-exist error", err)
	}
}

func TestConfigBuildsPipeline(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`{"taa": {}, "tonemap": {}}`))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	p := New(newDevice(t), WithConfig(cfg))
	if p.TAA() == nil || p.Tonemap() == nil {
		t.Fatal("configured effects missing")
	}
	if p.DoF() != nil || p.SSR() != nil {
		t.Error("unconfigured effects present")
	}
}
