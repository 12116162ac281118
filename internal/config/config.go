// Package config loads odbc.toml / odbc.yaml project files.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/odb-lang/odb-compiler/internal/engine"
)

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"odbc.toml", "odbc.yaml", "odbc.yml"}

// Config holds the complete compiler configuration
type Config struct {
	Keywords KeywordsConfig `toml:"keywords" yaml:"keywords"`
	Plugins  PluginsConfig  `toml:"plugins" yaml:"plugins"`
	Build    BuildConfig    `toml:"build" yaml:"build"`
	Display  DisplayConfig  `toml:"display" yaml:"display"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// KeywordsConfig lists where keyword definitions come from
type KeywordsConfig struct {
	Paths     []string `toml:"paths" yaml:"paths"`
	Recursive bool     `toml:"recursive" yaml:"recursive"`
	// Cache is the bbolt file for parsed keyword files; empty disables it.
	Cache string `toml:"cache" yaml:"cache"`
}

// PluginsConfig lists plugins the entry point always loads
type PluginsConfig struct {
	Paths []string `toml:"paths" yaml:"paths"`
	Core  string   `toml:"core" yaml:"core"`
}

// BuildConfig selects the engine, output kind and external tools
type BuildConfig struct {
	Engine       string   `toml:"engine" yaml:"engine"`
	Emit         string   `toml:"emit" yaml:"emit"`
	TargetTriple string   `toml:"target_triple" yaml:"target_triple"`
	LLVMAs       string   `toml:"llvm_as" yaml:"llvm_as"`
	LLC          string   `toml:"llc" yaml:"llc"`
	Linker       string   `toml:"linker" yaml:"linker"`
	SDKLibs      []string `toml:"sdk_libs" yaml:"sdk_libs"`
}

// DisplayConfig is passed to the core plugin's display initialisation
type DisplayConfig struct {
	Mode   int `toml:"mode" yaml:"mode"`
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
	Depth  int `toml:"depth" yaml:"depth"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Plugins: PluginsConfig{Core: engine.DefaultCore},
		Build: BuildConfig{
			Engine:       "tgc",
			Emit:         "exe",
			TargetTriple: "i386-pc-windows-msvc",
			LLVMAs:       "llvm-as",
			LLC:          "llc",
			Linker:       "lld-link",
			SDKLibs:      []string{"kernel32.lib", "user32.lib", "msvcrt.lib"},
		},
		Display: DisplayConfig{Mode: 1, Width: 640, Height: 480, Depth: 32},
		Log:     LogConfig{Level: "warn"},
	}
}

// Load reads a TOML or YAML file over the defaults. The format follows the
// file extension.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.expandPaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the first of DefaultFiles found in dir, or the defaults
// when there is none.
func Discover(dir string) (*Config, string, error) {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// Validate checks values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Build.Engine {
	case "tgc", "runtime":
	default:
		return fmt.Errorf("build.engine: unknown engine %q", c.Build.Engine)
	}
	switch c.Build.Emit {
	case "ir", "bc", "obj", "exe":
	default:
		return fmt.Errorf("build.emit: unknown output kind %q", c.Build.Emit)
	}
	if c.Display.Width < 0 || c.Display.Height < 0 || c.Display.Depth < 0 {
		return fmt.Errorf("display: negative size")
	}
	return nil
}

// expandPaths resolves environment variables and makes file paths relative
// to the config file's directory.
func (c *Config) expandPaths(base string) {
	resolve := func(p string) string {
		p = os.ExpandEnv(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, p := range c.Keywords.Paths {
		c.Keywords.Paths[i] = resolve(p)
	}
	for i, p := range c.Plugins.Paths {
		c.Plugins.Paths[i] = resolve(p)
	}
	c.Keywords.Cache = resolve(c.Keywords.Cache)
}

// EngineDisplay converts the display section for the engine.
func (c *Config) EngineDisplay() engine.Display {
	return engine.Display{
		Mode:   c.Display.Mode,
		Width:  c.Display.Width,
		Height: c.Display.Height,
		Depth:  c.Display.Depth,
	}
}
