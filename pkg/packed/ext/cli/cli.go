// Package cli exposes bean methods and functions annotated with command as
// cobra commands.
//
//	//packed::command "user add" -Short="Add a user" -Args=1
//	func (u *Users) Add(ctx context.Context, args []string) error
//
// Command operations may take a context.Context, the *cobra.Command, the
// positional []string arguments and any service of the container. A non-error
// result is printed to the command output.
package cli

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toyz/packed/pkg/packed"
	"go.uber.org/zap"
)

// Annotation is the hook annotation owned by the extension
const Annotation packed.AnnotationType = "command"

func init() {
	if err := packed.RegisterHook[*Extension](Annotation); err != nil {
		panic(err)
	}
}

var commandInfuser = func() *packed.Infuser {
	b := packed.NewInfuser(
		reflect.TypeFor[context.Context](),
		reflect.TypeFor[*cobra.Command](),
		reflect.TypeFor[[]string](),
	)
	_ = b.Direct(packed.KeyOf[context.Context](), 0)
	_ = b.Direct(packed.KeyOf[*cobra.Command](), 1)
	_ = b.Direct(packed.KeyOf[[]string](), 2)
	in, err := b.Build()
	if err != nil {
		panic(err)
	}
	return in
}()

type command struct {
	path  []string
	short string
	args  int
	op    *packed.Operation
}

// Extension collects the commands of one container. The extension of the
// root container owns the command tree of the whole application.
type Extension struct {
	handle   *packed.ExtensionHandle
	commands []*command
	children []*Extension
	tree     *cobra.Command
}

// OnNew registers the extension with the extension of the parent container
func (e *Extension) OnNew(h *packed.ExtensionHandle) error {
	e.handle = h
	parent, err := h.UseInParent()
	if err != nil {
		return err
	}
	if p, ok := parent.(*Extension); ok {
		p.children = append(p.children, e)
	}
	return nil
}

// IntrospectBean creates a command per command hook
func (e *Extension) IntrospectBean(b *packed.BeanHandle, agg *packed.Aggregate) error {
	for _, site := range agg.Sites() {
		a := site.Annotation
		path := strings.Fields(a.GetString("Use"))
		if len(path) == 0 {
			return fmt.Errorf("%s: empty command name", site)
		}
		op, err := b.NewOperation(site, commandInfuser)
		if err != nil {
			return err
		}
		e.commands = append(e.commands, &command{
			path:  path,
			short: a.GetString("Short"),
			args:  a.GetInt("Args", -1),
			op:    op,
		})
	}
	return nil
}

// OnClose builds the command tree of the container and its descendants.
// A command path declared twice anywhere in that tree fails the build.
func (e *Extension) OnClose(*packed.ContainerConfiguration) error {
	root := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var n int
	err := e.walk(func(ext *Extension) error {
		for _, cmd := range ext.commands {
			if err := attach(root, cmd); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.tree = root
	e.handle.Logger().Debug("commands registered", zap.Int("commands", n))
	return nil
}

// walk visits e and the extensions of descendant containers
func (e *Extension) walk(fn func(*Extension) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.children {
		if err := child.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Commands returns the command paths of the container, e.g. "user add"
func (e *Extension) Commands() []string {
	names := make([]string, len(e.commands))
	for i, cmd := range e.commands {
		names[i] = strings.Join(cmd.path, " ")
	}
	return names
}

// Command returns the command tree of app, built when the application was
// assembled, with a root command named after the application
func Command(app *packed.Application) (*cobra.Command, error) {
	ext, ok := packed.ExtensionOf[*Extension](app)
	if !ok {
		return &cobra.Command{
			Use:           app.Name(),
			SilenceUsage:  true,
			SilenceErrors: true,
		}, nil
	}
	if ext.tree == nil {
		return nil, fmt.Errorf("command tree of %s: %w", app.Name(), packed.ErrInvalidState)
	}
	ext.tree.Use = app.Name()
	return ext.tree, nil
}

// Execute runs the command selected by args. An uninitialized application is
// initialized first.
func Execute(ctx context.Context, app *packed.Application, args []string) error {
	if app.State() == packed.Uninitialized {
		if err := app.Initialize(ctx); err != nil {
			return err
		}
	}
	root, err := Command(app)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func attach(root *cobra.Command, cmd *command) error {
	parent := root
	for i, name := range cmd.path {
		child := find(parent, name)
		last := i == len(cmd.path)-1
		if child == nil {
			child = &cobra.Command{Use: name}
			parent.AddCommand(child)
		}
		if last {
			if child.RunE != nil {
				return fmt.Errorf("command %q is declared twice (%s)", strings.Join(cmd.path, " "), cmd.op.Name())
			}
			configure(child, cmd)
		}
		parent = child
	}
	return nil
}

func find(parent *cobra.Command, name string) *cobra.Command {
	for _, c := range parent.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func configure(c *cobra.Command, cmd *command) {
	c.Short = cmd.short
	if cmd.args >= 0 {
		c.Args = cobra.ExactArgs(cmd.args)
	} else {
		c.Args = cobra.ArbitraryArgs
	}
	op := cmd.op
	c.RunE = func(c *cobra.Command, args []string) error {
		ctx := c.Context()
		if args == nil {
			args = []string{}
		}
		result, err := op.Invoke(ctx, reflect.ValueOf(ctx), reflect.ValueOf(c), reflect.ValueOf(args))
		if err != nil {
			return err
		}
		if result.IsValid() && !isNil(result) {
			fmt.Fprintln(c.OutOrStdout(), result.Interface())
		}
		return nil
	}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
