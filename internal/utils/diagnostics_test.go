package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestDiagnostics(level DiagnosticLevel) (*DiagnosticSystem, *bytes.Buffer, *bytes.Buffer) {
	d := NewDiagnosticSystem(level)
	var out, errOut bytes.Buffer
	d.SetOutput(&out, &errOut)
	d.SetColors(false)
	d.SetShowTime(false)
	return d, &out, &errOut
}

func TestDiagnosticSystem_Levels(t *testing.T) {
	tests := []struct {
		level   DiagnosticLevel
		wantOut string
		wantErr string
	}{
		{level: DiagnosticSilent},
		{level: DiagnosticError, wantErr: "[ERROR] e\n"},
		{level: DiagnosticWarn, wantErr: "[ERROR] e\n[WARN] w\n"},
		{level: DiagnosticInfo, wantOut: "[INFO] i\n[OK] s\n", wantErr: "[ERROR] e\n[WARN] w\n"},
		{level: DiagnosticVerbose, wantOut: "[INFO] i\n[OK] s\n[VERBOSE] v\n", wantErr: "[ERROR] e\n[WARN] w\n"},
		{level: DiagnosticDebug, wantOut: "[INFO] i\n[OK] s\n[VERBOSE] v\n[DEBUG] d\n", wantErr: "[ERROR] e\n[WARN] w\n"},
	}
	for _, tt := range tests {
		d, out, errOut := newTestDiagnostics(tt.level)
		d.Error("e")
		d.Warn("w")
		d.Info("i")
		d.Success("s")
		d.Verbose("v")
		d.Debug("d")
		assert.Equal(t, tt.wantOut, out.String(), "level %d", tt.level)
		assert.Equal(t, tt.wantErr, errOut.String(), "level %d", tt.level)
	}
}

func TestDiagnosticSystem_Layout(t *testing.T) {
	d, out, _ := newTestDiagnostics(DiagnosticInfo)
	d.Header("generating %d packages", 2)
	d.Section("Scanning")
	d.Indent()
	d.Item("found %s", "shop")
	d.List("Users")
	d.Unindent()
	d.Unindent()
	d.List("top")
	d.Summary("Done", map[string]any{"hooks": 3, "beans": 1})

	assert.Equal(t,
		"Packed: generating 2 packages\n"+
			"Scanning:\n"+
			"  ✓ found shop\n"+
			"  - Users\n"+
			"- top\n"+
			"\nDone\n   beans: 1\n   hooks: 3\n",
		out.String())
}

func TestDiagnosticSystem_Colors(t *testing.T) {
	d, _, errOut := newTestDiagnostics(DiagnosticError)
	d.SetColors(true)
	d.Error("boom")
	assert.Contains(t, errOut.String(), "\x1b[31m[ERROR]")
}
