package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/pkg/packed"
	"github.com/toyz/packed/pkg/packed/ext/cli"
)

type Users struct {
	added []string
}

func (u *Users) Add(ctx context.Context, args []string) error {
	if ctx == nil {
		return errors.New("no context")
	}
	u.added = append(u.added, args[0])
	return nil
}

func (u *Users) Count(cmd *cobra.Command) int {
	return len(u.added)
}

func (u *Users) Fail() error {
	return errors.New("nope")
}

type Clash struct{}

func (Clash) One() {}
func (Clash) Two() {}

func init() {
	must(packed.DeclareMethodHooks[Users](map[string][]string{
		"Add":   {`command "user add" -Short="Add a user" -Args=1`},
		"Count": {`command "user count"`},
		"Fail":  {`command fail`},
	}))
	must(packed.DeclareMethodHooks[Clash](map[string][]string{
		"One": {"command same"},
		"Two": {"command same"},
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func build(t *testing.T) (*packed.Application, *Users) {
	t.Helper()
	users := &Users{}
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		if _, err := c.InstallInstance(users); err != nil {
			return err
		}
		fb, err := c.InstallFunctional("version")
		if err != nil {
			return err
		}
		fb.AddFunction("command version", func() string { return "v1.2.3" })
		return nil
	}), packed.Named("shopctl"))
	require.NoError(t, err)
	return app, users
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	app, users := build(t)

	require.NoError(t, cli.Execute(ctx, app, []string{"user", "add", "ada"}))
	require.NoError(t, cli.Execute(ctx, app, []string{"user", "add", "bob"}))
	assert.Equal(t, []string{"ada", "bob"}, users.added)
	assert.Equal(t, packed.Initialized, app.State())

	tests := []struct {
		name    string
		args    []string
		out     string
		wantErr string
	}{
		{name: "result printed", args: []string{"user", "count"}, out: "2\n"},
		{name: "function command", args: []string{"version"}, out: "v1.2.3\n"},
		{name: "wrong arg count", args: []string{"user", "add"}, wantErr: "accepts 1 arg(s)"},
		{name: "unknown command", args: []string{"nope"}, wantErr: "unknown command"},
		{name: "operation error", args: []string{"fail"}, wantErr: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := cli.Command(app)
			require.NoError(t, err)
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err = root.ExecuteContext(ctx)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, out.String())
		})
	}
}

func TestCommandTree(t *testing.T) {
	app, _ := build(t)
	root, err := cli.Command(app)
	require.NoError(t, err)
	assert.Equal(t, "shopctl", root.Name())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"user", "fail", "version"}, names)

	add, _, err := root.Find([]string{"user", "add"})
	require.NoError(t, err)
	assert.Equal(t, "Add a user", add.Short)

	ext, ok := packed.ExtensionOf[*cli.Extension](app)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"user add", "user count", "fail", "version"}, ext.Commands())
}

func TestDuplicateCommand(t *testing.T) {
	_, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		_, err := packed.InstallStatic[Clash](c)
		return err
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("command %q is declared twice", "same"))
}

type Ping struct{}

func (Ping) Run() string { return "pong" }

type Echo struct{}

func (Echo) Run() string { return "echo" }

func init() {
	must(packed.DeclareMethodHooks[Ping](map[string][]string{
		"Run": {"command ping"},
	}))
	must(packed.DeclareMethodHooks[Echo](map[string][]string{
		"Run": {"command ping"},
	}))
}

func linkStatic[T any]() packed.AssemblyFunc {
	return func(c *packed.ContainerConfiguration) error {
		_, err := packed.InstallStatic[T](c)
		return err
	}
}

func TestCommandTree_ChildContainers(t *testing.T) {
	ctx := context.Background()
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		return c.Link(linkStatic[Ping](), packed.Named("ping"))
	}), packed.Named("tool"))
	require.NoError(t, err)
	require.NoError(t, app.Initialize(ctx))

	root, err := cli.Command(app)
	require.NoError(t, err)
	again, err := cli.Command(app)
	require.NoError(t, err)
	assert.Same(t, root, again, "the tree is built once")
	assert.Equal(t, "tool", root.Name())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"ping"})
	require.NoError(t, root.ExecuteContext(ctx))
	assert.Equal(t, "pong\n", out.String())
}

func TestDuplicateCommand_AcrossContainers(t *testing.T) {
	_, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		if err := c.Link(linkStatic[Ping](), packed.Named("ping")); err != nil {
			return err
		}
		return c.Link(linkStatic[Echo](), packed.Named("echo"))
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("command %q is declared twice", "ping"))
}
