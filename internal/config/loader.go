package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
// Unknown fields are rejected so a typo in the YAML fails loudly instead of
// being silently ignored.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if !cfg.Model.Device.IsValid() {
		errs = append(errs, fmt.Errorf("model.device %q is invalid; valid values: cpu, cuda", cfg.Model.Device))
	}

	if cfg.Model.Channel <= 0 {
		errs = append(errs, fmt.Errorf("model.channel must be a positive engine pool size, got %d", cfg.Model.Channel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration_ms must be positive, got %d", cfg.Audio.FrameDurationMs))
	}
	if cfg.Audio.FrameSize > 0 && cfg.Audio.SampleRate > 0 && cfg.Audio.FrameDurationMs > 0 {
		want := cfg.Audio.SampleRate * cfg.Audio.FrameDurationMs / 1000 * 2
		if cfg.Audio.FrameSize != want {
			errs = append(errs, fmt.Errorf("audio.frame_size %d does not match sample_rate*frame_duration_ms/1000*2 = %d", cfg.Audio.FrameSize, want))
		}
	}

	if cfg.Network.Port <= 0 || cfg.Network.Port > 65535 {
		errs = append(errs, fmt.Errorf("network.port must be in [1, 65535], got %d", cfg.Network.Port))
	}

	if cfg.Logging.SavePCM && cfg.Logging.PCMPath == "" {
		slog.Warn("logging.save_pcm is enabled but logging.pcm_path is empty; recordings will be written to the current directory")
	}

	return errors.Join(errs...)
}
