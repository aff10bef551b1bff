package packed

import (
	"context"
	"reflect"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/hooks"
	"go.uber.org/zap"
)

// Assembly declares the contents of one container
type Assembly interface {
	Build(c *ContainerConfiguration) error
}

// AssemblyFunc adapts a function to Assembly
type AssemblyFunc func(c *ContainerConfiguration) error

// Build calls f(c)
func (f AssemblyFunc) Build(c *ContainerConfiguration) error {
	return f(c)
}

// PreBuilder assemblies run PreBuild before Build
type PreBuilder interface {
	PreBuild(c *ContainerConfiguration) error
}

// PostBuilder assemblies run PostBuild after Build, before the container closes
type PostBuilder interface {
	PostBuild(c *ContainerConfiguration) error
}

// Completer assemblies receive the mirror of their container once it is closed
type Completer interface {
	Completed(m *ContainerMirror) error
}

// BuildHook observes the build of a container. Nil functions are skipped.
type BuildHook struct {
	OnBootstrap func(c *ContainerConfiguration) error
	OnPreBuild  func(c *ContainerConfiguration) error
	OnPostBuild func(c *ContainerConfiguration) error
	OnCompleted func(m *ContainerMirror) error
}

// Build builds assembly into an uninitialized application
func Build(assembly Assembly, wirelets ...Wirelet) (*Application, error) {
	w := applyWirelets(wirelets)

	name := w.name
	if name == "" {
		name = assemblyName(assembly)
	}
	logger := w.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	config := w.config
	if config == nil {
		config = viper.New()
	}

	app := &Application{
		id:      uuid.New(),
		name:    name,
		logger:  logger.Named("packed").With(zap.String("application", name)),
		config:  config,
		scanner: hooks.DefaultScanner(),
	}
	app.root = newContainer(app, nil, name, w)

	if err := app.root.build(assembly); err != nil {
		app.logger.Error("build failed", zap.Error(err), errors.Detail(err))
		return nil, err
	}
	if err := app.validate(); err != nil {
		app.logger.Error("build failed", zap.Error(err), errors.Detail(err))
		return nil, err
	}

	app.logger.Info("application built",
		zap.Stringer("id", app.id),
		zap.Int("containers", len(app.containers())))
	return app, nil
}

// Run builds, initializes and starts the application, waits for ctx to be
// done and stops it
func Run(ctx context.Context, assembly Assembly, wirelets ...Wirelet) error {
	app, err := Build(assembly, wirelets...)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return app.Stop(context.WithoutCancel(ctx))
}

// build runs the build pipeline of the container
func (c *container) build(assembly Assembly) error {
	path := c.path()
	if assembly == nil {
		return buildError(path, PhaseBuild, errors.New(errors.ConfigurationErrorCode, "nil assembly"))
	}
	cc := &ContainerConfiguration{c: c}
	c.logger.Debug("building container", zap.String("assembly", assemblyName(assembly)))

	if err := c.runHooks(PhaseBootstrap, func(h BuildHook) error {
		if h.OnBootstrap == nil {
			return nil
		}
		return h.OnBootstrap(cc)
	}); err != nil {
		return err
	}

	if pb, ok := assembly.(PreBuilder); ok {
		if err := pb.PreBuild(cc); err != nil {
			return buildError(path, PhasePreBuild, err)
		}
	}
	if err := c.runHooks(PhasePreBuild, func(h BuildHook) error {
		if h.OnPreBuild == nil {
			return nil
		}
		return h.OnPreBuild(cc)
	}); err != nil {
		return err
	}

	if err := assembly.Build(cc); err != nil {
		return buildError(path, PhaseBuild, err)
	}

	if err := c.runHooks(PhasePostBuild, func(h BuildHook) error {
		if h.OnPostBuild == nil {
			return nil
		}
		return h.OnPostBuild(cc)
	}); err != nil {
		return err
	}
	if pb, ok := assembly.(PostBuilder); ok {
		if err := pb.PostBuild(cc); err != nil {
			return buildError(path, PhasePostBuild, err)
		}
	}

	if err := c.close(); err != nil {
		return err
	}

	mirror := c.mirror()
	if err := c.runHooks(PhaseCompleted, func(h BuildHook) error {
		if h.OnCompleted == nil {
			return nil
		}
		return h.OnCompleted(mirror)
	}); err != nil {
		return err
	}
	if done, ok := assembly.(Completer); ok {
		if err := done.Completed(mirror); err != nil {
			return buildError(path, PhaseCompleted, err)
		}
	}
	return nil
}

// runHooks calls fn for every build hook; hooks added while running are included
func (c *container) runHooks(phase string, fn func(BuildHook) error) error {
	for i := 0; i < len(c.buildHooks); i++ {
		if err := fn(c.buildHooks[i]); err != nil {
			return buildError(c.path(), phase, errors.WrapWithOperation("run", phase+" hook", err))
		}
	}
	return nil
}

func assemblyName(assembly Assembly) string {
	if assembly == nil {
		return "container"
	}
	if _, ok := assembly.(AssemblyFunc); ok {
		return "container"
	}
	t := reflect.TypeOf(assembly)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "container"
	}
	return t.Name()
}
