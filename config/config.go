// Package config loads and validates the bridge runtime configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/ejb-bridge/errors"
	"github.com/wippyai/ejb-bridge/handle"
)

// Config is the service runtime configuration.
type Config struct {
	JVM     JVMConfig     `yaml:"jvm"`
	Service ServiceConfig `yaml:"service"`
	Handles HandleConfig  `yaml:"handles"`
}

// JVMConfig configures the embedded virtual machine.
type JVMConfig struct {
	// UserParameters are passed to the JVM without their leading dash.
	// Parameters the bridge sets itself are rejected.
	UserParameters []string `yaml:"user_parameters"`
	ClassPath      string   `yaml:"class_path"`
	LibPath        string   `yaml:"lib_path"`
	LogConfigPath  string   `yaml:"log_config_path"`
}

// ServiceConfig configures the hosted service.
type ServiceConfig struct {
	// ModuleName is the fully qualified service module name.
	ModuleName string `yaml:"module_name"`
	// Port of the service HTTP server. Must differ from the node's ports.
	Port int `yaml:"port"`
}

// HandleConfig configures the handle registry.
type HandleConfig struct {
	// ShutdownPolicy is "sweep" (default) or "leak".
	ShutdownPolicy string `yaml:"shutdown_policy"`
	LogLevel       string `yaml:"log_level"`
}

var forbiddenPrefixes = []string{
	"Djava.class.path",
	"Djava.library.path",
	"Dlog4j.configurationFile",
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidConfig, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidConfig, err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and JVM parameters.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return errors.InvalidConfig("service.port", fmt.Sprintf("%d is not in 1..65535", c.Service.Port))
	}
	if _, err := c.Handles.Policy(); err != nil {
		return err
	}
	for _, p := range c.JVM.UserParameters {
		if err := checkNotForbidden(p); err != nil {
			return err
		}
	}
	return nil
}

// Policy maps the configured shutdown policy.
func (h HandleConfig) Policy() (handle.ShutdownPolicy, error) {
	switch strings.ToLower(h.ShutdownPolicy) {
	case "", "sweep":
		return handle.ShutdownSweep, nil
	case "leak":
		return handle.ShutdownLeak, nil
	default:
		return 0, errors.InvalidConfig("handles.shutdown_policy",
			fmt.Sprintf("unknown policy %q, want sweep or leak", h.ShutdownPolicy))
	}
}

// Args returns the full JVM argument list: the user parameters with a
// leading dash, followed by the parameters the bridge sets internally.
func (j JVMConfig) Args() ([]string, error) {
	args := make([]string, 0, len(j.UserParameters)+3)
	for _, p := range j.UserParameters {
		arg, err := ValidateAndConvert(p)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return append(args,
		"-Djava.class.path="+j.ClassPath,
		"-Djava.library.path="+j.LibPath,
		"-Dlog4j.configurationFile="+j.LogConfigPath,
	), nil
}

// ValidateAndConvert rejects parameters the bridge sets itself and adds the leading dash.
func ValidateAndConvert(param string) (string, error) {
	if err := checkNotForbidden(param); err != nil {
		return "", err
	}
	return "-" + param, nil
}

func checkNotForbidden(param string) error {
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(param, prefix) {
			return errors.ForbiddenParameter(param)
		}
	}
	return nil
}
