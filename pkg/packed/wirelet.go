package packed

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Wirelet modifies how an assembly is built or linked
type Wirelet func(*wiring)

type wiring struct {
	name         string
	logger       *zap.Logger
	config       *viper.Viper
	hooks        []BuildHook
	interceptors []Interceptor
}

func applyWirelets(wirelets []Wirelet) *wiring {
	w := &wiring{}
	for _, wirelet := range wirelets {
		if wirelet != nil {
			wirelet(w)
		}
	}
	return w
}

// Named sets the name of the container (or of the application when building)
func Named(name string) Wirelet {
	return func(w *wiring) {
		w.name = name
	}
}

// WithLogger sets the application logger. Ignored when linking a child container.
func WithLogger(logger *zap.Logger) Wirelet {
	return func(w *wiring) {
		w.logger = logger
	}
}

// WithConfig sets the configuration source of config hooks. Ignored when linking.
func WithConfig(config *viper.Viper) Wirelet {
	return func(w *wiring) {
		w.config = config
	}
}

// WithBuildHook attaches a build hook to the container
func WithBuildHook(hook BuildHook) Wirelet {
	return func(w *wiring) {
		w.hooks = append(w.hooks, hook)
	}
}

// WithInterceptor wraps every operation of the container and its children
func WithInterceptor(interceptor Interceptor) Wirelet {
	return func(w *wiring) {
		w.interceptors = append(w.interceptors, interceptor)
	}
}
