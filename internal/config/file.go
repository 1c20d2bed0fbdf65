package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the subset of Config that may come from DIALER_CONFIG_FILE.
// Secrets stay in the environment.
type fileConfig struct {
	Dialer     DialerConfig     `yaml:"dialer"`
	WrapUp     WrapUpConfig     `yaml:"wrapup"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Callbacks  CallbacksConfig  `yaml:"callbacks"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	fc := fileConfig{
		Dialer:     c.Dialer,
		WrapUp:     c.WrapUp,
		Checkpoint: c.Checkpoint,
		MQTT:       c.MQTT,
		Callbacks:  c.Callbacks,
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	c.Dialer = fc.Dialer
	c.WrapUp = fc.WrapUp
	c.Checkpoint = fc.Checkpoint
	c.MQTT = fc.MQTT
	c.Callbacks = fc.Callbacks
	return nil
}
