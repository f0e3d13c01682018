package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/tinycam/internal/logging"
)

// EnvPrefix is prepended to every `env` tag when reading the environment.
const EnvPrefix = "TINYCAM_"

var durationType = reflect.TypeFor[time.Duration]()

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// opts must be a pointer to a struct; a string field named Config holds the
// TOML path. If cmd is provided, flags explicitly set via CLI are not overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v = v.Elem()

	changed := changedFlags(cmd)

	if path := v.FieldByName("Config"); path.IsValid() && path.Kind() == reflect.String && path.String() != "" {
		if err := applyTOML(v, path.String(), changed); err != nil {
			return err
		}
	}

	applyEnv(v, changed)
	return nil
}

// changedFlags returns the names of flags explicitly set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// applyTOML fills tagged fields from the TOML file at path. A missing file
// is not an error.
func applyTOML(v reflect.Value, path string, changed map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}

	t := v.Type()
	for i := range v.NumField() {
		f := t.Field(i)
		if changed[fieldNameToFlag(f.Name)] {
			continue
		}
		key := f.Tag.Get("toml")
		if key == "" {
			continue
		}
		if value := getNestedValue(doc, key); value != nil {
			setFieldValue(v.Field(i), value)
		}
	}
	return nil
}

// applyEnv fills tagged fields from EnvPrefix-prefixed environment variables.
func applyEnv(v reflect.Value, changed map[string]bool) {
	t := v.Type()
	for i := range v.NumField() {
		f := t.Field(i)
		if changed[fieldNameToFlag(f.Name)] {
			continue
		}
		key := f.Tag.Get("env")
		if key == "" {
			continue
		}
		if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
			setFieldValueFromString(v.Field(i), value)
		}
	}
}

// fieldNameToFlag converts a struct field name to a CLI flag name the way
// humacli does. Example: "RetryDelay" -> "retry-delay", "JPEGQuality" ->
// "jpeg-quality".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var result []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				result = append(result, '-')
			}
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		switch d := value.(type) {
		case string:
			if parsed, err := time.ParseDuration(d); err == nil {
				field.SetInt(int64(parsed))
			}
		case int64:
			field.SetInt(d * int64(time.Millisecond))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int32, reflect.Int64:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
		} else if i, intOk := value.(int); intOk {
			field.SetInt(int64(i))
		}
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		if i, ok := value.(int64); ok && i >= 0 {
			field.SetUint(uint64(i))
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			if arr, ok := value.([]any); ok {
				slice := make([]string, 0, len(arr))
				for _, v := range arr {
					if s, strOk := v.(string); strOk {
						slice = append(slice, s)
					}
				}
				field.Set(reflect.ValueOf(slice))
			}
		}
	}
}

// setFieldValueFromString sets a field value from string (for env vars).
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(value); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int32, reflect.Int64:
		if i, err := strconv.ParseInt(value, 0, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		if i, err := strconv.ParseUint(value, 0, 64); err == nil {
			field.SetUint(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// LoadLoggingConfig loads the [logging] table from a TOML config file.
// Returns default config if the file doesn't exist or can't be parsed.
// Module levels come from [logging.modules]; any other string key in
// [logging] is also treated as a module level.
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

	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = asString(value, cfg.Level)
		case "format":
			cfg.Format = asString(value, cfg.Format)
		case "file":
			cfg.File = asString(value, "")
		case "max_size_mb":
			cfg.MaxSizeMB = asInt(value)
		case "max_backups":
			cfg.MaxBackups = asInt(value)
		case "max_age_days":
			cfg.MaxAgeDays = asInt(value)
		case "modules":
			if modules, ok := value.(map[string]any); ok {
				for name, level := range modules {
					if s, ok := level.(string); ok {
						cfg.Modules[name] = s
					}
				}
			}
		default:
			if s, ok := value.(string); ok {
				cfg.Modules[key] = s
			}
		}
	}

	return cfg
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func asInt(v any) int {
	if i, ok := v.(int64); ok {
		return int(i)
	}
	return 0
}
