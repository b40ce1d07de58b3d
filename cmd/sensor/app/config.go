package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/airsense-io/csi-sense/internal/csi"
	"github.com/airsense-io/csi-sense/internal/device"
	"github.com/airsense-io/csi-sense/internal/pipeline"
	"github.com/airsense-io/csi-sense/internal/presence"
	"github.com/airsense-io/csi-sense/internal/storage"
)

const (
	DeviceSerial = "serial"
	DeviceReplay = "replay"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Sensing   SensingConfig   `yaml:"sensing"`
	Device    DeviceConfig    `yaml:"device"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SensingConfig represents the sampling and detection settings
type SensingConfig struct {
	SampleRateHz             int               `yaml:"sampleRateHz"`
	WindowDurationMS         int               `yaml:"windowDurationMs"`
	Subcarriers              int               `yaml:"subcarriers"`
	QueueSize                int               `yaml:"queueSize"`
	UseAmplitude             bool              `yaml:"useAmplitude"`
	UsePhase                 bool              `yaml:"usePhase"`
	EnablePresenceDetection  bool              `yaml:"enablePresenceDetection"`
	EnablePoseClassification bool              `yaml:"enablePoseClassification"`
	Thresholds               *ThresholdsConfig `yaml:"thresholds"`
}

// features maps the configured feature families onto extraction flags.
func (c SensingConfig) features() presence.FeatureFlags {
	return presence.FeatureFlags{
		Amplitude: c.UseAmplitude,
		Phase:     c.UsePhase,
	}
}

// WindowSamples returns the window length in samples.
func (c SensingConfig) WindowSamples() int {
	n := c.WindowDurationMS * c.SampleRateHz / 1000
	if n < 1 {
		n = 1
	}
	return n
}

// ThresholdsConfig overrides the default decision thresholds
type ThresholdsConfig struct {
	EmptyAmplitudeStd   float64 `yaml:"emptyAmplitudeStd"`
	MovingPhaseVariance float64 `yaml:"movingPhaseVariance"`
	MotionLevel         float64 `yaml:"motionLevel"`
}

// DeviceConfig represents the sensor front-end configuration
type DeviceConfig struct {
	Type     string `yaml:"type"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
	File     string `yaml:"file"`
}

// ServerConfig represents the HTTP API settings
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
}

// StorageConfig represents capture recording settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	Label         string `yaml:"label"`
	BatchSize     int    `yaml:"batchSize"`
}

// TelemetryConfig represents the NDJSON stream settings
type TelemetryConfig struct {
	Stdout bool `yaml:"stdout"`
}

// LoadConfig reads, parses and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := defaultConfig()
	if err = yaml.Unmarshal(p, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Sensing: SensingConfig{
			SampleRateHz:            100,
			WindowDurationMS:        500,
			Subcarriers:             52,
			QueueSize:               pipeline.DefaultQueueSize,
			UseAmplitude:            true,
			UsePhase:                true,
			EnablePresenceDetection: true,
		},
		Device: DeviceConfig{
			Type:     DeviceSerial,
			BaudRate: device.DefaultBaudRate,
		},
		Server: ServerConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
		Storage: StorageConfig{
			DataDirectory: "data",
			BatchSize:     storage.DefaultBatchSize,
		},
	}
}

func (c *Config) validate() error {
	if c.Sensing.SampleRateHz <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.Sensing.SampleRateHz)
	}
	if c.Sensing.WindowDurationMS <= 0 {
		return fmt.Errorf("invalid window duration %dms", c.Sensing.WindowDurationMS)
	}
	if c.Sensing.Subcarriers <= 0 || c.Sensing.Subcarriers > csi.MaxSubcarriers {
		return fmt.Errorf("invalid subcarrier count %d", c.Sensing.Subcarriers)
	}
	if c.Sensing.EnablePresenceDetection && !c.Sensing.UseAmplitude {
		return fmt.Errorf("presence detection requires amplitude features")
	}

	switch strings.ToLower(c.Device.Type) {
	case DeviceSerial:
		if c.Device.Port == "" {
			return fmt.Errorf("serial device requires a port")
		}
	case DeviceReplay:
		if c.Device.File == "" {
			return fmt.Errorf("replay device requires a file")
		}
	default:
		return fmt.Errorf("unknown device type '%s'", c.Device.Type)
	}

	return nil
}

// thresholds maps the configured overrides onto the defaults.
func (c *Config) thresholds() presence.Thresholds {
	th := presence.DefaultThresholds()
	if o := c.Sensing.Thresholds; o != nil {
		if o.EmptyAmplitudeStd > 0 {
			th.EmptyAmplitudeStd = o.EmptyAmplitudeStd
		}
		if o.MovingPhaseVariance > 0 {
			th.MovingPhaseVariance = o.MovingPhaseVariance
		}
		if o.MotionLevel > 0 {
			th.MotionLevel = o.MotionLevel
		}
	}
	return th
}
