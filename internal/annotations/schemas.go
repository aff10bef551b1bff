package annotations

import (
	"fmt"
	"time"
)

// Import paths of the packages whose extensions handle the builtin annotations
const (
	CoreExtensionPackage       = "github.com/toyz/packed/pkg/packed"
	SchedulingExtensionPackage = "github.com/toyz/packed/pkg/packed/ext/scheduling"
	CLIExtensionPackage        = "github.com/toyz/packed/pkg/packed/ext/cli"
	TelemetryExtensionPackage  = "github.com/toyz/packed/pkg/packed/ext/telemetry"
	WebExtensionPackage        = "github.com/toyz/packed/pkg/packed/ext/web"
)

var noParameters = map[string]ParameterSpec{}

func nameParameter(description string) ParameterSpec {
	return ParameterSpec{Type: StringType, Description: description}
}

// Builtin returns the schemas of the annotations packed and its extensions
// handle
func Builtin() []AnnotationSchema {
	return []AnnotationSchema{
		{
			Type:        InjectAnnotation,
			Description: "Injects a service into a field or through a setter method",
			Targets:     TargetField | TargetMethod,
			Extension:   CoreExtensionPackage,
			Parameters: map[string]ParameterSpec{
				"Name": nameParameter("Qualifier of the service key"),
				"Optional": {
					Type:        BoolType,
					Default:     false,
					Description: "Leave the target unset when no service matches",
				},
			},
			Examples: []string{
				`packed:"inject"`,
				`packed:"inject -Name=primary"`,
				"//packed::inject -Optional",
			},
		},
		{
			Type:        ProvideAnnotation,
			Description: "Exposes the result of a method as a service keyed by its type",
			Targets:     TargetMethod | TargetFunction,
			Extension:   CoreExtensionPackage,
			Parameters: map[string]ParameterSpec{
				"Name": nameParameter("Qualifier of the provided service key"),
			},
			Examples: []string{"//packed::provide", "//packed::provide -Name=readonly"},
		},
		{
			Type:        InitializeAnnotation,
			Description: "Runs a method once the bean has been created and injected",
			Targets:     TargetMethod,
			Extension:   CoreExtensionPackage,
			Parameters:  noParameters,
			Examples:    []string{"//packed::initialize"},
		},
		{
			Type:        StartAnnotation,
			Description: "Runs a method when the application starts, in install order",
			Targets:     TargetMethod,
			Extension:   CoreExtensionPackage,
			Parameters:  noParameters,
			Examples:    []string{"//packed::start"},
		},
		{
			Type:        StopAnnotation,
			Description: "Runs a method when the application stops, in reverse install order",
			Targets:     TargetMethod,
			Extension:   CoreExtensionPackage,
			Parameters:  noParameters,
			Examples:    []string{"//packed::stop"},
		},
		{
			Type:        ConfigAnnotation,
			Description: "Fills a field from the application configuration",
			Targets:     TargetField,
			Extension:   CoreExtensionPackage,
			Positional:  []string{"Key"},
			Parameters: map[string]ParameterSpec{
				"Key": {
					Type:        StringType,
					Required:    true,
					Description: "Dotted configuration key (e.g., server.port)",
					Check:       checkConfigKey,
				},
				"Default": {Type: StringType, Description: "Value used when the key is not set"},
			},
			Examples: []string{
				`packed:"config -Key=server.port"`,
				`packed:"config server.addr -Default=:8080"`,
			},
		},
		{
			Type:        ScheduleAnnotation,
			Description: "Runs a method periodically while the application is running",
			Targets:     TargetMethod | TargetFunction,
			Extension:   SchedulingExtensionPackage,
			Positional:  []string{"Every"},
			Parameters: map[string]ParameterSpec{
				"Every": {
					Type:        DurationType,
					Required:    true,
					Description: "Interval between runs (e.g., 30s, 5m)",
					Check:       checkPositive,
				},
				"Delay": {
					Type:        DurationType,
					Default:     time.Duration(0),
					Description: "Delay before the first run",
					Check:       checkNonNegative,
				},
				"MaxFailures": {
					Type:        IntType,
					Default:     3,
					Description: "Consecutive failures before the breaker of the job opens",
				},
			},
			Examples: []string{
				"//packed::schedule -Every=30s",
				"//packed::schedule 1m -Delay=10s -MaxFailures=5",
			},
		},
		{
			Type:        CommandAnnotation,
			Description: "Exposes a method as a CLI command",
			Targets:     TargetMethod | TargetFunction,
			Extension:   CLIExtensionPackage,
			Positional:  []string{"Use"},
			Parameters: map[string]ParameterSpec{
				"Use":   {Type: StringType, Required: true, Description: "Command name; use 'parent child' to nest"},
				"Short": {Type: StringType, Description: "One-line help text"},
				"Args": {
					Type:        IntType,
					Default:     -1,
					Description: "Exact number of positional arguments (-1 for any)",
				},
			},
			Check: checkCommand,
			Examples: []string{
				`//packed::command migrate -Short="Run database migrations"`,
				`//packed::command "user add" -Args=1`,
			},
		},
		{
			Type:        TracedAnnotation,
			Description: "Wraps a method in a tracing span",
			Targets:     TargetMethod | TargetFunction,
			Extension:   TelemetryExtensionPackage,
			Parameters: map[string]ParameterSpec{
				"Name": nameParameter("Span name; defaults to Type.Method"),
			},
			Examples: []string{"//packed::traced", "//packed::traced -Name=checkout"},
		},
		{
			Type:        RouteAnnotation,
			Description: "Serves a method as an HTTP route",
			Targets:     TargetMethod | TargetFunction,
			Extension:   WebExtensionPackage,
			Positional:  []string{"Method", "Path"},
			Parameters: map[string]ParameterSpec{
				"Method": {
					Type:        StringType,
					Required:    true,
					Description: "HTTP method (GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, ANY)",
					Check:       checkHTTPMethod,
				},
				"Path": {
					Type:        StringType,
					Required:    true,
					Description: "URL path pattern (e.g., /users, /users/{id}, /static/{*})",
					Check:       checkRoutePath,
				},
				"Middleware": {
					Type:        StringSliceType,
					Description: "Comma-separated names of registered middleware",
				},
			},
			Examples: []string{
				"//packed::route GET /users",
				"//packed::route POST /users/{id} -Middleware=auth,audit",
				"//packed::route GET /static/{*}",
			},
		},
	}
}

// RegisterBuiltinSchemas registers the builtin schemas with registry
func RegisterBuiltinSchemas(registry *Registry) error {
	for _, schema := range Builtin() {
		if err := registry.Register(schema); err != nil {
			return fmt.Errorf("register builtin %s: %w", schema.Type, err)
		}
	}
	return nil
}
