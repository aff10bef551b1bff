package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/internal/models"
	"github.com/toyz/packed/internal/parser"
)

const usersSource = `package shop

import "context"

type Config struct {
	Port int ` + "`packed:\"config -Key=server.port\"`" + `
}

type Users struct{}

//packed::traced -Name=users.sync
//packed::schedule 1m
func (u *Users) Sync(ctx context.Context) error { return nil }

//packed::route GET /users/{id}
func (u *Users) Get() {}
`

const wantUsersFile = `// Code generated by packed generate. DO NOT EDIT.

package shop

import "github.com/toyz/packed/pkg/packed"

func init() {
	if err := packed.DeclareMethodHooks[Users](map[string][]string{
		"Get": {
			"route GET /users/{id}",
		},
		"Sync": {
			"traced -Name=users.sync",
			"schedule 1m",
		},
	}); err != nil {
		panic(err)
	}
}
`

func TestGenerate(t *testing.T) {
	meta, err := parser.NewParser().ParseSource("shop.go", usersSource)
	require.NoError(t, err)
	meta.PackagePath = "shop"

	file, err := NewGenerator().Generate(meta)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, filepath.Join("shop", "packed_hooks.go"), file.FilePath)
	assert.Equal(t, "shop", file.PackageName)
	assert.Equal(t, 1, file.Beans)
	assert.Equal(t, 3, file.Hooks)
	assert.Equal(t, wantUsersFile, string(file.Content))
}

func TestGenerate_NoMethodHooks(t *testing.T) {
	meta := &models.PackageMetadata{
		PackageName: "cfg",
		Beans: []models.BeanMetadata{
			{Name: "Config", Fields: []models.HookSite{{Member: "Port", Kind: models.SiteField, Text: "config"}}},
		},
	}
	file, err := NewGenerator().Generate(meta)
	require.NoError(t, err)
	assert.Nil(t, file)

	_, err = NewGenerator().Generate(nil)
	assert.Error(t, err)
}

func TestGenerate_InsidePackedPackage(t *testing.T) {
	meta := &models.PackageMetadata{
		PackageName: "packed",
		ImportPath:  "github.com/toyz/packed/pkg/packed",
		Beans: []models.BeanMetadata{
			{Name: "widget", Methods: []models.HookSite{{Member: "Start", Kind: models.SiteMethod, Text: "start"}}},
		},
	}
	file, err := NewGenerator().Generate(meta)
	require.NoError(t, err)
	assert.NotContains(t, string(file.Content), "import")
	assert.Contains(t, string(file.Content), "\tif err := DeclareMethodHooks[widget](")
}

func TestGenerate_BadBeanName(t *testing.T) {
	meta := &models.PackageMetadata{
		PackageName: "shop",
		Beans: []models.BeanMetadata{
			{Name: "Not Valid", Methods: []models.HookSite{{Member: "Start", Text: "start"}}},
		},
	}
	_, err := NewGenerator().Generate(meta)
	var gerr *models.GeneratorError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, models.ErrorTypeGeneration, gerr.Type)
	assert.Contains(t, gerr.Message, "must be a valid Go identifier")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.go"), []byte(usersSource), 0o644))

	meta, err := parser.NewParser().ParseDirectory(dir)
	require.NoError(t, err)

	file, err := NewGenerator().Write(meta)
	require.NoError(t, err)
	require.NotNil(t, file)

	written, err := os.ReadFile(filepath.Join(dir, "packed_hooks.go"))
	require.NoError(t, err)
	assert.Equal(t, wantUsersFile, string(written))

	again, err := parser.NewParser().ParseDirectory(dir)
	require.NoError(t, err, "generated file is skipped on rescan")
	assert.Equal(t, meta.Beans, again.Beans)
}
