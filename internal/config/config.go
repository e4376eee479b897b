// Package config provides the configuration schema, loader, and backend
// registry for the asrstreamd speech-recognition server.
package config

import "time"

// LogLevel controls slog verbosity. Valid values: "debug", "info", "warn",
// "error".
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognized level names.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError, "":
		return true
	default:
		return false
	}
}

// Device selects where the transcriber backend runs.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// IsValid reports whether d is a recognized device name.
func (d Device) IsValid() bool {
	switch d {
	case DeviceCPU, DeviceCUDA, "":
		return true
	default:
		return false
	}
}

// Config is the root configuration structure for asrstreamd. It is
// typically loaded from a YAML file with [Load] or [LoadFromReader].
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	VAD     VADConfig     `yaml:"vad"`
	Model   ModelConfig   `yaml:"model"`
	Network NetworkConfig `yaml:"network"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig describes the fixed frame geometry every connection speaks.
type AudioConfig struct {
	// FrameSize is the number of bytes in one classifier frame. Must equal
	// SampleRate * FrameDurationMs / 1000 * 2 (16-bit mono samples).
	FrameSize int `yaml:"frame_size"`

	// SampleRate is the PCM sample rate in Hz, e.g. 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameDurationMs is the duration represented by one frame, in
	// milliseconds, e.g. 30.
	FrameDurationMs int `yaml:"frame_duration_ms"`
}

// VADConfig configures the endpoint detector's classifier.
type VADConfig struct {
	// Mode is the classifier aggressiveness/sensitivity setting, passed
	// through to the configured classifier backend unmodified.
	Mode int `yaml:"mode"`
}

// ModelConfig configures the transcriber backend and the engine pool.
type ModelConfig struct {
	// Size selects the model variant, e.g. "base", "small", "medium".
	Size string `yaml:"size"`

	// Device names where inference runs. It is validated and logged; the
	// whisper backend does not read it.
	Device Device `yaml:"device"`

	// Language is the ISO 639-1 language code passed to the transcriber,
	// e.g. "en". Empty means auto-detect, if the backend supports it.
	Language string `yaml:"language"`

	// Channel is the engine pool size — the number of sessions the server
	// can serve concurrently.
	Channel int `yaml:"channel"`
}

// NetworkConfig configures the TCP listener.
type NetworkConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`

	// SocketTimeout bounds how long the server waits for the next client
	// read before disconnecting, in seconds.
	SocketTimeout int `yaml:"socket_timeout"`
}

// SocketTimeoutDuration returns SocketTimeout as a time.Duration,
// substituting a 60s default when unset.
func (n NetworkConfig) SocketTimeoutDuration() time.Duration {
	if n.SocketTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(n.SocketTimeout) * time.Second
}

// LoggingConfig configures the server's text log and optional PCM
// recording.
type LoggingConfig struct {
	LogPath string   `yaml:"log_path"`
	Level   LogLevel `yaml:"level"`

	// SavePCM turns on PCM recording. It is loaded and validated, but the
	// daemon does not create a logging.Recorder, so no session audio is
	// written to disk.
	SavePCM bool `yaml:"save_pcm"`

	// PCMPath is the directory PCM recordings are written under, when
	// SavePCM is true.
	PCMPath string `yaml:"pcm_path"`
}
