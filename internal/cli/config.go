package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/utils"
)

// ConfigName is the base name of the project config file
const ConfigName = ".packed"

// Output formats of the scan command
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the configuration for the CLI generator
type Config struct {
	// Directories is the list of directories or ./... patterns to scan
	Directories []string `mapstructure:"directories"`

	// ModuleName overrides the module path read from go.mod
	ModuleName string `mapstructure:"module"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`

	// Output is the scan output format
	Output string `mapstructure:"output"`

	// Strict rejects annotations without a known schema
	Strict bool `mapstructure:"strict"`
}

// NewViper returns a viper instance with defaults set and PACKED_* environment
// variables bound
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("directories", []string{"./..."})
	v.SetDefault("module", "")
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("output", FormatText)
	v.SetDefault("strict", false)
	v.SetEnvPrefix("PACKED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile loads path, or .packed.yaml from dir when path is empty. A
// missing default file is not an error.
func ReadConfigFile(v *viper.Viper, path, dir string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadConfig decodes and validates the configuration held by v
func LoadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option combinations and values
func (c *Config) Validate() error {
	if c.Verbose && c.Quiet {
		return utils.ValidationError{Field: "quiet", Value: c.Quiet, Message: "cannot be combined with verbose"}
	}
	if err := utils.IsOneOf("output", FormatText, FormatJSON, FormatYAML)(c.Output); err != nil {
		return err
	}
	if c.ModuleName != "" {
		if err := utils.IsModulePath("module")(c.ModuleName); err != nil {
			return err
		}
	}
	return utils.ValidateEach("directories", utils.NotEmpty("directory"))(c.Directories)
}

// Diagnostics returns the diagnostic system matching the verbosity options
func (c *Config) Diagnostics() *utils.DiagnosticSystem {
	switch {
	case c.Quiet:
		return utils.NewQuietDiagnostics()
	case c.Verbose:
		return utils.NewVerboseDiagnostics()
	default:
		return utils.NewDiagnosticSystem(utils.DiagnosticInfo)
	}
}
