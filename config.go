package postfx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/postfx/dof"
	"github.com/gogpu/postfx/pool"
	"github.com/gogpu/postfx/ssr"
	"github.com/gogpu/postfx/taa"
	"github.com/gogpu/postfx/tonemap"
)

// Config is the serialisable form of a pipeline setup. A nil effect is
// left out of the pipeline.
//
// In JSON, every effect object is applied over that effect's defaults, so
// a file only names what it changes:
//
//	{
//		"taa": {"mode": 3},
//		"ssr": {"preset": "high", "basic": {"maxDistance": 50}},
//		"tonemap": {"filmic": {"enabled": true, "exposureBias": 0.5}},
//		"pool": {"budgetMB": 128}
//	}
//
// The "preset" key of "ssr" selects the base settings: performance,
// default or high.
type Config struct {
	TAA     *taa.Settings     `json:"taa,omitempty"`
	DoF     *dof.Settings     `json:"dof,omitempty"`
	SSR     *ssr.Settings     `json:"ssr,omitempty"`
	Tonemap *tonemap.Settings `json:"tonemap,omitempty"`
	Pool    pool.Config       `json:"pool"`
}

// rawConfig defers decoding the effects until their defaults are known.
type rawConfig struct {
	TAA     json.RawMessage `json:"taa"`
	DoF     json.RawMessage `json:"dof"`
	SSR     json.RawMessage `json:"ssr"`
	Tonemap json.RawMessage `json:"tonemap"`
	Pool    pool.Config     `json:"pool"`
}

// DecodeConfig reads a JSON configuration. Unknown keys are errors.
func DecodeConfig(r io.Reader) (Config, error) {
	var raw rawConfig
	if err := strict(r, &raw); err != nil {
		return Config{}, fmt.Errorf("postfx: decode config: %w", err)
	}

	var cfg Config
	var err error
	if cfg.TAA, err = overlay(raw.TAA, taa.DefaultSettings()); err != nil {
		return Config{}, fmt.Errorf("postfx: taa config: %w", err)
	}
	if cfg.DoF, err = overlay(raw.DoF, dof.DefaultSettings()); err != nil {
		return Config{}, fmt.Errorf("postfx: dof config: %w", err)
	}
	if cfg.SSR, err = decodeSSR(raw.SSR); err != nil {
		return Config{}, fmt.Errorf("postfx: ssr config: %w", err)
	}
	if cfg.Tonemap, err = overlay(raw.Tonemap, tonemap.DefaultSettings()); err != nil {
		return Config{}, fmt.Errorf("postfx: tonemap config: %w", err)
	}
	cfg.Pool = raw.Pool
	return cfg, nil
}

// LoadConfig reads a JSON configuration file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("postfx: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// Encode writes cfg as indented JSON.
func (c Config) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(c)
}

func strict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// overlay decodes raw over def. An absent or null section gives nil.
func overlay[T any](raw json.RawMessage, def T) (*T, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if err := strict(bytes.NewReader(raw), &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func decodeSSR(raw json.RawMessage) (*ssr.Settings, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var head struct {
		Preset string `json:"preset"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	preset, err := ssr.ParsePreset(head.Preset)
	if err != nil {
		return nil, err
	}
	// The preset key is not a settings field.
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	delete(body, "preset")
	rest, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return overlay(rest, preset.Settings())
}
