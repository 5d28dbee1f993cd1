package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PDF2FIGURES_"

type Config struct {
	InputPath        string  `yaml:"input"`
	OutputDir        string  `yaml:"output_dir"`
	ManifestName     string  `yaml:"manifest_name"`
	ManifestYAML     bool    `yaml:"manifest_yaml"`
	Strategy         string  `yaml:"strategy"`     // position, keyword
	BlockSource      string  `yaml:"block_source"` // auto, stext, html
	MutoolPath       string  `yaml:"mutool_path"`
	CaptionDistance  float64 `yaml:"caption_distance"`
	DPI              int     `yaml:"dpi"`
	MaxDimension     int     `yaml:"max_dimension"`
	ProgressInterval int     `yaml:"progress_interval"`
	ShowStats        bool    `yaml:"show_stats"`
	LogLevel         string  `yaml:"log_level"`
	LogFormat        string  `yaml:"log_format"`
	LogOutput        string  `yaml:"log_output"`
	BuildVersion     string  `yaml:"-"`
}

func Default() *Config {
	return &Config{
		OutputDir:        "extracted_images",
		ManifestName:     "image_list.txt",
		Strategy:         "position",
		BlockSource:      "auto",
		MutoolPath:       "mutool",
		CaptionDistance:  50,
		DPI:              72,
		ProgressInterval: 10,
		LogLevel:         "info",
		LogFormat:        "console",
		LogOutput:        "stderr",
	}
}

// LoadFile overlays a YAML file on top of cfg
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PDF2FIGURES_* environment variables on top of cfg
func (c *Config) ApplyEnv() error {
	c.InputPath = getEnv("INPUT", c.InputPath)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.ManifestName = getEnv("MANIFEST_NAME", c.ManifestName)
	c.Strategy = getEnv("STRATEGY", c.Strategy)
	c.BlockSource = getEnv("BLOCK_SOURCE", c.BlockSource)
	c.MutoolPath = getEnv("MUTOOL_PATH", c.MutoolPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogOutput = getEnv("LOG_OUTPUT", c.LogOutput)

	var err error
	if c.ManifestYAML, err = getEnvBool("MANIFEST_YAML", c.ManifestYAML); err != nil {
		return err
	}
	if c.ShowStats, err = getEnvBool("SHOW_STATS", c.ShowStats); err != nil {
		return err
	}
	if c.CaptionDistance, err = getEnvFloat("CAPTION_DISTANCE", c.CaptionDistance); err != nil {
		return err
	}
	if c.DPI, err = getEnvInt("DPI", c.DPI); err != nil {
		return err
	}
	if c.MaxDimension, err = getEnvInt("MAX_DIMENSION", c.MaxDimension); err != nil {
		return err
	}
	if c.ProgressInterval, err = getEnvInt("PROGRESS_INTERVAL", c.ProgressInterval); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Strategy {
	case "position", "keyword":
	default:
		return fmt.Errorf("strategy must be position or keyword, got %q", c.Strategy)
	}
	switch c.BlockSource {
	case "auto", "stext", "html":
	default:
		return fmt.Errorf("block_source must be auto, stext or html, got %q", c.BlockSource)
	}
	if c.CaptionDistance <= 0 {
		return fmt.Errorf("caption_distance must be positive, got %v", c.CaptionDistance)
	}
	if c.DPI < 72 || c.DPI > 1200 {
		return fmt.Errorf("dpi must be between 72 and 1200, got %d", c.DPI)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max_dimension must not be negative, got %d", c.MaxDimension)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %d", c.ProgressInterval)
	}
	if c.OutputDir == "" || c.ManifestName == "" {
		return fmt.Errorf("output_dir and manifest_name are required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return f, nil
}
