package packed

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/errors"
)

// ConfigExtension fills fields carrying a config hook from the application
// configuration. Values are decoded with viper's UnmarshalKey, so strings
// convert to numbers, durations and comma separated slices.
type ConfigExtension struct {
	handle *ExtensionHandle
}

// OnNew stores the extension handle
func (e *ConfigExtension) OnNew(h *ExtensionHandle) error {
	e.handle = h
	return nil
}

// IntrospectBean creates a field operation per config hook. Keys that are
// neither set nor defaulted fail the build.
func (e *ConfigExtension) IntrospectBean(b *BeanHandle, agg *Aggregate) error {
	cfg := e.handle.Config()
	for _, site := range agg.Sites() {
		key := site.Annotation.GetString("Key")
		def, hasDefault := site.Annotation.Parameters["Default"].(string)
		if !cfg.IsSet(key) && !hasDefault {
			return errors.ConfigurationError(key, fmt.Sprintf("%s is not set and has no default", site)).
				WithSuggestion(fmt.Sprintf("set %q in the configuration passed with packed.WithConfig or add -Default", key))
		}

		fieldType := site.Field.Type
		op, err := b.NewFieldOperation(site, func(context.Context) (reflect.Value, error) {
			return configValue(cfg, fieldType, key, def, hasDefault)
		})
		if err != nil {
			return err
		}
		if err := b.OnInject(op); err != nil {
			return err
		}
	}
	return nil
}

func configValue(cfg *viper.Viper, t reflect.Type, key, def string, hasDefault bool) (reflect.Value, error) {
	source := cfg
	if !cfg.IsSet(key) {
		if !hasDefault {
			return reflect.Value{}, errors.ConfigurationError(key, "key is not set")
		}
		source = viper.New()
		source.Set(key, def)
	}

	ptr := reflect.New(t)
	if err := source.UnmarshalKey(key, ptr.Interface()); err != nil {
		return reflect.Value{}, errors.WrapConfigurationError(key, "decode", err)
	}
	return ptr.Elem(), nil
}
