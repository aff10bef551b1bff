package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyz/packed/pkg/packed"
	"github.com/toyz/packed/pkg/packed/ext/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type Checkout struct {
	Tracer trace.Tracer `packed:"inject"`
	Log    *zap.Logger  `packed:"inject"`

	spanValid bool
}

func (c *Checkout) Warm(ctx context.Context) {
	c.spanValid = trace.SpanContextFromContext(ctx).IsValid()
	c.Log.Info("warming")
}

func init() {
	if err := packed.DeclareMethodHooks[Checkout](map[string][]string{
		"Warm": {"initialize", "traced -Name=checkout.warm"},
	}); err != nil {
		panic(err)
	}
}

var errQuote = errors.New("no quote")

func quote() (int, error) {
	return 0, errQuote
}

func TestTracedOperations(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	core, logs := observer.New(zap.InfoLevel)

	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		tel, err := packed.Use[*telemetry.Extension](c)
		if err != nil {
			return err
		}
		if err := tel.SetTracerProvider(tp); err != nil {
			return err
		}
		if err := tel.SetLogger(zap.New(core)); err != nil {
			return err
		}
		if _, err := packed.Install[Checkout](c); err != nil {
			return err
		}
		fb, err := c.InstallFunctional("quotes")
		if err != nil {
			return err
		}
		fb.AddFunction("provide -Name=quote", quote)
		fb.AddFunction("traced", quote)
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, app.Initialize(ctx))

	checkout, err := packed.Lookup[*Checkout](ctx, app)
	require.NoError(t, err)
	assert.True(t, checkout.spanValid)
	assert.NotNil(t, checkout.Tracer)
	assert.Equal(t, 1, logs.FilterMessage("warming").Len())

	_, err = packed.Lookup[int](ctx, app, "quote")
	assert.ErrorIs(t, err, errQuote)

	ended := spans.Ended()
	require.Len(t, ended, 2)

	warm := ended[0]
	assert.Equal(t, "checkout.warm", warm.Name())
	assert.Contains(t, warm.Attributes(), attribute.String("packed.operation", "Checkout.Warm"))
	assert.Contains(t, warm.Attributes(), attribute.String("packed.annotation", "initialize"))
	assert.Equal(t, codes.Unset, warm.Status().Code)

	failed := ended[1]
	assert.Equal(t, "telemetry_test.quote", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, errQuote.Error(), failed.Status().Description)
	require.Len(t, failed.Events(), 1)
	assert.Equal(t, "exception", failed.Events()[0].Name)

	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Stop(ctx))
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	app, err := packed.Build(packed.AssemblyFunc(func(c *packed.ContainerConfiguration) error {
		_, err := packed.Install[Checkout](c)
		return err
	}))
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))

	tel, ok := packed.ExtensionOf[*telemetry.Extension](app)
	require.True(t, ok)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Logger())

	checkout, err := packed.Lookup[*Checkout](ctx, app)
	require.NoError(t, err)
	assert.True(t, checkout.spanValid)

	require.NoError(t, app.Stop(ctx))
	assert.ErrorIs(t, tel.SetLogger(zap.NewNop()), packed.ErrConfigurationClosed)
	assert.ErrorIs(t, tel.SetTracerProvider(sdktrace.NewTracerProvider()), packed.ErrConfigurationClosed)
}
