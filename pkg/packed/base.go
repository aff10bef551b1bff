package packed

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/toyz/packed/internal/annotations"
	"go.uber.org/zap"
)

// BaseExtension handles the inject, provide, initialize, start and stop hooks.
// It is used implicitly by every container whose beans carry those hooks.
type BaseExtension struct {
	handle *ExtensionHandle
}

// OnNew stores the extension handle
func (e *BaseExtension) OnNew(h *ExtensionHandle) error {
	e.handle = h
	return nil
}

// IntrospectBean turns the lifecycle and injection hooks of a bean into operations
func (e *BaseExtension) IntrospectBean(b *BeanHandle, agg *Aggregate) error {
	for _, site := range agg.Sites() {
		var err error
		switch site.Annotation.Type {
		case annotations.InjectAnnotation:
			err = e.inject(b, site)
		case annotations.ProvideAnnotation:
			err = e.provide(b, site)
		case annotations.InitializeAnnotation:
			err = e.lifecycle(b, site, b.OnInitialize)
		case annotations.StartAnnotation:
			err = e.lifecycle(b, site, b.OnStart)
		case annotations.StopAnnotation:
			err = e.lifecycle(b, site, b.OnStop)
		default:
			err = fmt.Errorf("unexpected %s hook", site.Annotation.Type)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", site, err)
		}
	}
	return nil
}

func (e *BaseExtension) inject(b *BeanHandle, site *HookSite) error {
	name := site.Annotation.GetString("Name")
	optional := site.Annotation.GetBool("Optional")

	if site.Target != annotations.TargetField {
		opts := []OperationOption{Qualified(name)}
		if optional {
			opts = append(opts, OptionalServices())
		}
		op, err := b.NewOperation(site, nil, opts...)
		if err != nil {
			return err
		}
		return b.OnInject(op)
	}

	key := KeyFor(site.Field.Type, name)
	b.Require(key, optional)
	op, err := b.NewFieldOperation(site, func(ctx context.Context) (reflect.Value, error) {
		v, err := b.Lookup(ctx, key)
		if err != nil && optional && stderrors.Is(err, ErrNoService) {
			return reflect.Value{}, nil
		}
		return v, err
	})
	if err != nil {
		return err
	}
	return b.OnInject(op)
}

func (e *BaseExtension) provide(b *BeanHandle, site *HookSite) error {
	var ft reflect.Type
	if site.Target == annotations.TargetMethod {
		ft = site.Method.Type
	} else {
		ft = site.Function.Type()
	}
	if ft.NumOut() == 0 || ft.Out(0) == errorType {
		return fmt.Errorf("provide needs a result, got %s", ft)
	}

	op, err := b.NewOperation(site, nil)
	if err != nil {
		return err
	}
	key := KeyFor(ft.Out(0), site.Annotation.GetString("Name"))
	if err := b.ProvideService(key, op); err != nil {
		return err
	}
	if e.handle != nil {
		e.handle.Logger().Debug("service provided",
			zap.Stringer("key", key),
			zap.String("operation", op.Name()))
	}
	return nil
}

func (e *BaseExtension) lifecycle(b *BeanHandle, site *HookSite, register func(*Operation) error) error {
	op, err := b.NewOperation(site, nil)
	if err != nil {
		return err
	}
	return register(op)
}
