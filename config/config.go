// Package config is the options-file surface of the tool. Everything here is
// optional: with no file present, every toggle stays off and the caller's
// flags decide.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vasdmi666/Deobfuscator-Luau/luau"
)

const (
	// DefaultFileName is looked up in the working directory when no explicit
	// config path is given.
	DefaultFileName = "fsdec.yaml"

	envPrefix = "FSDEC"
)

type Config struct {
	// EmitSymbolTable prefixes output files with the decoded string table.
	EmitSymbolTable bool `yaml:"emit_symbol_table" mapstructure:"emit_symbol_table"`
	// EmitLineNumbers writes a starting-line comment above located functions.
	EmitLineNumbers bool `yaml:"emit_line_numbers" mapstructure:"emit_line_numbers"`
	// EmitVariableComments writes local/upvalue comments above located functions.
	EmitVariableComments bool `yaml:"emit_variable_comments" mapstructure:"emit_variable_comments"`
	// NumThreads bounds the worker pool for folder processing, 0 = auto.
	NumThreads int `yaml:"num_threads" mapstructure:"num_threads"`
	// Decompiler is the name of the external decompiler binary.
	Decompiler string `yaml:"decompiler" mapstructure:"decompiler"`
}

func Default() *Config {
	return &Config{
		Decompiler: "luau-lifter",
	}
}

// configKeys lists every key of the file surface. Viper only unmarshals keys
// it has seen, so each one carries an explicit default and env bind.
var configKeys = []string{
	"emit_symbol_table",
	"emit_line_numbers",
	"emit_variable_comments",
	"num_threads",
	"decompiler",
}

// Load reads a config file via viper, applying FSDEC_* environment overrides.
// An empty path means "the default file if it exists": a missing default file
// is not an error, a missing explicit file is. Environment overrides apply
// whether or not a file exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)

	def := Default()
	v.SetDefault("emit_symbol_table", def.EmitSymbolTable)
	v.SetDefault("emit_line_numbers", def.EmitLineNumbers)
	v.SetDefault("emit_variable_comments", def.EmitVariableComments)
	v.SetDefault("num_threads", def.NumThreads)
	v.SetDefault("decompiler", def.Decompiler)

	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		missing := os.IsNotExist(errors.Cause(err))
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if explicit || !missing {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// Options maps the file surface onto the reattachment toggles.
func (c *Config) Options() luau.Options {
	return luau.Options{
		EmitSymbolTable:      c.EmitSymbolTable,
		EmitLineNumbers:      c.EmitLineNumbers,
		EmitVariableComments: c.EmitVariableComments,
	}
}

// WriteDefault writes a commented default config file. Refuses to clobber an
// existing file.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultFileName
	}

	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("config file already exists: %s", path)
	}

	body, err := yaml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}

	header := []byte("# fsdec configuration. All annotation toggles default to off.\n")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	return errors.Wrapf(os.WriteFile(path, append(header, body...), 0o644), "write %s", path)
}
