package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/models"
	"gopkg.in/yaml.v3"
)

func scanFixture() []*models.PackageMetadata {
	return []*models.PackageMetadata{{
		PackageName: "shop",
		PackagePath: "shop",
		ImportPath:  "example.com/app/shop",
		Beans: []models.BeanMetadata{{
			Name: "Shop",
			File: "shop/shop.go",
			Line: 3,
			Fields: []models.HookSite{
				{Bean: "Shop", Member: "Repo", Kind: models.SiteField, Annotation: "inject", Text: "inject", File: "shop/shop.go", Line: 4},
			},
			Methods: []models.HookSite{
				{Bean: "Shop", Member: "Items", Kind: models.SiteMethod, Annotation: "cached", Text: "cached 5m", File: "shop/shop.go", Line: 9, Unknown: true},
			},
		}},
	}}
}

func TestWriteScan_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, FormatText, scanFixture()))

	out := buf.String()
	assert.Contains(t, out, "package shop (example.com/app/shop)\n")
	assert.Contains(t, out, "  Shop\n")
	assert.Regexp(t, `field\s+Repo\s+inject\s+shop/shop.go:4`, out)
	assert.Regexp(t, `method\s+Items\s+cached 5m\s+shop/shop.go:9\s+\(unknown\)`, out)
}

func TestWriteScan_Structured(t *testing.T) {
	want := scanFixture()

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteScan(&jsonBuf, FormatJSON, want))
	var fromJSON []*models.PackageMetadata
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	if diff := cmp.Diff(want, fromJSON); diff != "" {
		t.Errorf("json round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, jsonBuf.String(), `"import_path": "example.com/app/shop"`)

	var yamlBuf bytes.Buffer
	require.NoError(t, WriteScan(&yamlBuf, FormatYAML, want))
	var fromYAML []*models.PackageMetadata
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	if diff := cmp.Diff(want, fromYAML); diff != "" {
		t.Errorf("yaml round trip mismatch (-want +got):\n%s", diff)
	}

	var empty bytes.Buffer
	require.NoError(t, WriteScan(&empty, FormatJSON, nil))
	assert.Equal(t, "[]\n", empty.String())
}

func TestWriteScan_UnknownFormat(t *testing.T) {
	err := WriteScan(&bytes.Buffer{}, "xml", nil)
	assert.EqualError(t, err, `unknown output format "xml"`)
}

func TestWriteSchemas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchemas(&buf, annotations.DefaultRegistry()))

	out := buf.String()
	assert.Contains(t, out, "route  [method|function]\n")
	assert.Contains(t, out, "  positional: Method, Path\n")
	assert.Contains(t, out, "  extension: github.com/toyz/packed/pkg/packed/ext/web\n")
	assert.Contains(t, out, "  -MaxFailures int (default 3)")
	assert.Contains(t, out, "start  [method]\n")
	assert.Contains(t, out, "  -Key string (required)")
	assert.Contains(t, out, "  e.g. //packed::start\n")
}
