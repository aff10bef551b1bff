package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSource = `package users

type Users struct{}

//packed::start
func (u *Users) Open() error { return nil }

//packed::route GET /users
func (u *Users) List() {}
`

func setupModule(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	root := t.TempDir()
	files["go.mod"] = "module example.com/app\n\ngo 1.25\n\nrequire github.com/toyz/packed v0.1.0\n"
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(root)
	return root
}

func run(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestGenerateAndClean(t *testing.T) {
	root := setupModule(t, map[string]string{"users/users.go": usersSource})
	generated := filepath.Join(root, "users", "packed_hooks.go")

	out, _, err := run("generate", "./...")
	require.NoError(t, err)
	assert.Contains(t, out, "Packed: generating hooks for [./...]")
	assert.Contains(t, out, "Files generated: 1")
	assert.FileExists(t, generated)

	content, err := os.ReadFile(generated)
	require.NoError(t, err)
	assert.Contains(t, string(content), "packed.DeclareMethodHooks[Users]")

	out, _, err = run("clean", "./...")
	require.NoError(t, err)
	assert.Contains(t, out, "1 generated file(s) removed")
	assert.NoFileExists(t, generated)
}

func TestGenerate_Problems(t *testing.T) {
	setupModule(t, map[string]string{
		"bad/bad.go": "package bad\n\n//packed::start\nfunc Run() {}\n",
	})

	_, errOut, err := run("generate", "./...")
	require.Error(t, err)
	assert.Contains(t, errOut, "function Run cannot carry hook annotations")
	assert.Contains(t, errOut, "Error: generation failed")
}

func TestScan_Formats(t *testing.T) {
	setupModule(t, map[string]string{"users/users.go": usersSource})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "text", args: []string{"scan", "./..."}, want: "package users (example.com/app/users)"},
		{name: "json", args: []string{"scan", "--format", "json", "./..."}, want: `"import_path": "example.com/app/users"`},
		{name: "yaml", args: []string{"scan", "-f", "yaml", "./..."}, want: "import_path: example.com/app/users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	_, _, err := run("scan", "--format", "xml")
	assert.ErrorContains(t, err, "field 'output'")
}

func TestConfigFile(t *testing.T) {
	setupModule(t, map[string]string{
		"users/users.go": usersSource,
		".packed.yaml":   "output: json\ndirectories:\n  - ./users\n",
	})

	out, _, err := run("scan")
	require.NoError(t, err)
	assert.Contains(t, out, `"package": "users"`)

	_, _, err = run("generate", "--verbose", "--quiet")
	assert.ErrorContains(t, err, "cannot be combined with verbose")
}

func TestSchemas(t *testing.T) {
	out, _, err := run("schemas")
	require.NoError(t, err)
	assert.Contains(t, out, "inject  [field|method]")
	assert.Contains(t, out, "schedule  [method|function]")

	_, _, err = run("schemas", "extra")
	assert.Error(t, err)
}
