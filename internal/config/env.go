package config

import (
	"encoding"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "TOPICBUS"

// ApplyEnv overrides settings from environment variables named after the toml
// keys, e.g. TOPICBUS_BUS_MAX_CONCURRENCY or TOPICBUS_LOG_LEVEL. Unset
// variables leave the value alone. An empty prefix means DefaultEnvPrefix.
func (c *Config) ApplyEnv(prefix string) error {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return applyEnvToStruct(prefix, reflect.ValueOf(c).Elem())
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// applyEnvToStruct recursively applies environment variables to struct fields.
func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		name := fieldType.Tag.Get("toml")
		if name == "" || name == "-" {
			name = fieldType.Name
		}
		envKey := prefix + "_" + strings.ToUpper(name)

		if field.Kind() == reflect.Struct && !reflect.PointerTo(field.Type()).Implements(textUnmarshalerType) {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("setting %s from %s: %w", fieldType.Name, envKey, err)
		}
	}

	return nil
}

// setFieldFromEnv sets a struct field value from an environment variable.
func setFieldFromEnv(field reflect.Value, envValue string) error {
	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(strings.TrimSpace(envValue)))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer value %q", envValue)
		}
		field.SetInt(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(strings.TrimSpace(envValue))
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", envValue)
		}
		field.SetBool(v)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
