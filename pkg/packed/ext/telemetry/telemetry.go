// Package telemetry wraps the operations of members annotated with traced in
// OpenTelemetry spans and provides a trace.Tracer and a *zap.Logger as
// services.
//
//	//packed::traced -Name=checkout
//	func (s *Shop) Checkout(ctx context.Context, cart *Cart) error
//
// Every operation invoked on a traced member, whichever extension created
// it, runs inside a span. Its context.Context parameters receive the span
// context. Returned errors are recorded on the span.
package telemetry

import (
	"context"
	"fmt"
	"reflect"

	"github.com/toyz/packed/pkg/packed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Annotation is the hook annotation owned by the extension
const Annotation packed.AnnotationType = "traced"

// InstrumentationName names the tracer the extension creates
const InstrumentationName = "github.com/toyz/packed"

func init() {
	if err := packed.RegisterHook[*Extension](Annotation); err != nil {
		panic(err)
	}
}

type member struct {
	bean *packed.Bean
	name string
}

// Extension traces the operations of one container and its children
type Extension struct {
	handle   *packed.ExtensionHandle
	provider trace.TracerProvider
	owned    *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   *zap.Logger
	closed   bool
	spans    map[member]string
}

// OnNew registers the interceptor and the tracer and logger services
func (e *Extension) OnNew(h *packed.ExtensionHandle) error {
	e.handle = h
	e.spans = make(map[member]string)
	if err := h.AddInterceptor(e.intercept); err != nil {
		return err
	}
	if err := h.ProvideService(packed.KeyOf[trace.Tracer](), func(context.Context) (any, error) {
		return e.tracer, nil
	}); err != nil {
		return err
	}
	return h.ProvideService(packed.KeyOf[*zap.Logger](), func(context.Context) (any, error) {
		return e.Logger(), nil
	})
}

// SetTracerProvider replaces the default sdk tracer provider. It must be
// called before the container closes.
func (e *Extension) SetTracerProvider(tp trace.TracerProvider) error {
	if e.closed {
		return fmt.Errorf("set tracer provider: %w", packed.ErrConfigurationClosed)
	}
	e.provider = tp
	return nil
}

// SetLogger replaces the logger provided as a service. It must be called
// before the container closes.
func (e *Extension) SetLogger(logger *zap.Logger) error {
	if e.closed {
		return fmt.Errorf("set logger: %w", packed.ErrConfigurationClosed)
	}
	e.logger = logger
	return nil
}

// Logger returns the provided logger, the container logger unless replaced
func (e *Extension) Logger() *zap.Logger {
	if e.logger != nil {
		return e.logger
	}
	return e.handle.Container().Logger()
}

// Tracer returns the tracer spans are started with; nil before the container closes
func (e *Extension) Tracer() trace.Tracer {
	return e.tracer
}

// IntrospectBean records the span name of every traced member
func (e *Extension) IntrospectBean(b *packed.BeanHandle, agg *packed.Aggregate) error {
	for _, site := range agg.Sites() {
		name := site.Annotation.GetString("Name")
		if name == "" {
			name = site.Member
			if b.Type() != nil {
				name = b.Name() + "." + site.Member
			}
		}
		e.spans[member{bean: b.Bean(), name: site.Member}] = name
	}
	return nil
}

// OnClose fixes the tracer provider, creating an sdk provider when none was set
func (e *Extension) OnClose(*packed.ContainerConfiguration) error {
	e.closed = true
	if e.provider == nil {
		e.owned = sdktrace.NewTracerProvider()
		e.provider = e.owned
	}
	e.tracer = e.provider.Tracer(InstrumentationName)
	e.handle.Logger().Debug("tracing configured", zap.Int("members", len(e.spans)))
	return nil
}

// OnStop shuts the default provider down unless the application restarts
func (e *Extension) OnStop(ctx context.Context, info packed.StopInfo) error {
	if e.owned == nil || info.Restart {
		return nil
	}
	if err := e.owned.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

func (e *Extension) intercept(op *packed.Operation, next packed.Invoker) packed.Invoker {
	if op.Kind() == packed.FieldOperation {
		return next
	}
	name, ok := e.spans[member{bean: op.Bean(), name: op.Site().Member}]
	if !ok {
		return next
	}

	attrs := []attribute.KeyValue{
		attribute.String("packed.operation", op.Name()),
		attribute.String("packed.bean", op.Bean().Name()),
		attribute.String("packed.annotation", string(op.Annotation().Type)),
	}
	return func(ctx context.Context, recv reflect.Value, args []reflect.Value) (reflect.Value, error) {
		ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
		defer span.End()

		args = withContext(ctx, args)
		result, err := next(ctx, recv, args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}

var contextType = reflect.TypeFor[context.Context]()

// withContext replaces raw context arguments with ctx so operations that
// receive their context from the owning extension see the span
func withContext(ctx context.Context, args []reflect.Value) []reflect.Value {
	var out []reflect.Value
	for i, arg := range args {
		if arg.IsValid() && arg.Type().Implements(contextType) {
			if out == nil {
				out = append([]reflect.Value(nil), args...)
			}
			out[i] = reflect.ValueOf(ctx)
		}
	}
	if out == nil {
		return args
	}
	return out
}
