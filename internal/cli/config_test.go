package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/internal/utils"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := NewViper()
	require.NoError(t, ReadConfigFile(v, "", t.TempDir()))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, &Config{Directories: []string{"./..."}, Output: FormatText}, cfg)
	assert.Equal(t, utils.DiagnosticInfo, cfg.Diagnostics().Level())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := "module: example.com/app\nverbose: true\noutput: yaml\ndirectories:\n  - ./internal/...\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".packed.yaml"), []byte(content), 0o644))
	t.Setenv("PACKED_OUTPUT", "json")

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, "", dir))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "example.com/app", cfg.ModuleName)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, FormatJSON, cfg.Output, "environment overrides the file")
	assert.Equal(t, []string{"./internal/..."}, cfg.Directories)
	assert.Equal(t, utils.DiagnosticVerbose, cfg.Diagnostics().Level())
}

func TestReadConfigFile_ExplicitMissing(t *testing.T) {
	err := ReadConfigFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{Directories: []string{"."}, Output: FormatYAML, ModuleName: "example.com/app"}},
		{name: "verbose and quiet", cfg: Config{Verbose: true, Quiet: true, Output: FormatText}, wantErr: "cannot be combined with verbose"},
		{name: "bad output", cfg: Config{Output: "xml"}, wantErr: "field 'output'"},
		{name: "bad module", cfg: Config{Output: FormatText, ModuleName: "not a module"}, wantErr: "field 'module'"},
		{name: "empty directory", cfg: Config{Output: FormatText, Directories: []string{""}}, wantErr: "directories[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Diagnostics(t *testing.T) {
	cfg := Config{Quiet: true}
	assert.Equal(t, utils.DiagnosticError, cfg.Diagnostics().Level())
}
