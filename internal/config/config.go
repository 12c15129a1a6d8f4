package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camhls/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag when reading overrides.
const EnvPrefix = "CAMHLS_"

var durationType = reflect.TypeOf(time.Duration(0))

// option is one settable field of an options struct with its binding tags.
type option struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

// LoadConfig fills opts, a pointer to a flat options struct, from the TOML
// file named by its Config field and then from CAMHLS_* environment
// variables. Flags the user set on cmd are left alone, so the precedence is
// CLI > env > file > defaults.
//
// Every layer is applied even when some values are bad; the bad ones are
// skipped and returned together. A missing config file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	options, configPath := collectOptions(reflect.ValueOf(opts).Elem())

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	}
	pending := options[:0:0]
	for _, o := range options {
		if !changed[o.flag] {
			pending = append(pending, o)
		}
	}

	var errs []error

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("read config %s: %w", configPath, err)
		default:
			var doc map[string]any
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
			for _, o := range pending {
				if o.toml == "" {
					continue
				}
				if raw := getNestedValue(doc, o.toml); raw != nil {
					if err := assign(o.value, raw); err != nil {
						errs = append(errs, fmt.Errorf("%s: %s: %w", configPath, o.toml, err))
					}
				}
			}
		}
	}

	for _, o := range pending {
		if o.env == "" {
			continue
		}
		if raw, ok := os.LookupEnv(EnvPrefix + o.env); ok && raw != "" {
			if err := assign(o.value, raw); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.env, err))
			}
		}
	}

	return errors.Join(errs...)
}

// collectOptions lists the tagged fields of v and returns the Config path.
func collectOptions(v reflect.Value) ([]option, string) {
	t := v.Type()
	var (
		out        []option
		configPath string
	)
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.Name == "Config" && sf.Type.Kind() == reflect.String {
			configPath = v.Field(i).String()
			continue
		}
		if !v.Field(i).CanSet() {
			continue
		}
		out = append(out, option{
			value: v.Field(i),
			flag:  fieldNameToFlag(sf.Name),
			toml:  sf.Tag.Get("toml"),
			env:   sf.Tag.Get("env"),
		})
	}
	return out, configPath
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue looks up a dotted path such as "reconnect.max_delay_ms".
func getNestedValue(data map[string]any, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return data[head]
	}
	child, ok := data[head].(map[string]any)
	if !ok {
		return nil
	}
	return getNestedValue(child, rest)
}

// assign stores raw into field. raw is either a decoded TOML value or an
// environment string; strings are parsed according to the field type.
func assign(field reflect.Value, raw any) error {
	if s, ok := raw.(string); ok && field.Kind() != reflect.String {
		return assignString(field, s)
	}

	switch field.Kind() {
	case reflect.String:
		switch raw.(type) {
		case string, int64, float64, bool:
			field.SetString(fmt.Sprint(raw))
			return nil
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			break
		}
		if i, ok := raw.(int64); ok {
			field.SetInt(i)
			return nil
		}
	case reflect.Float64:
		switch f := raw.(type) {
		case float64:
			field.SetFloat(f)
			return nil
		case int64:
			field.SetFloat(float64(f))
			return nil
		}
	case reflect.Slice:
		if items, ok := raw.([]any); ok && field.Type().Elem().Kind() == reflect.String {
			strs := make([]string, 0, len(items))
			for _, item := range items {
				s, isStr := item.(string)
				if !isStr {
					return fmt.Errorf("list item %v is %T, want string", item, item)
				}
				strs = append(strs, s)
			}
			field.Set(reflect.ValueOf(strs))
			return nil
		}
	}
	return fmt.Errorf("cannot use %T value %v as %s", raw, raw, field.Type())
}

// assignString parses s into a non-string field. Lists are comma separated.
func assignString(field reflect.Value, s string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case field.Kind() == reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of a TOML config file.
// "level" and "format" are global; any other key sets a module level.
// Defaults are returned when the file is missing or unreadable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if toml.Unmarshal(data, &doc) != nil {
		return cfg
	}

	for key, value := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
