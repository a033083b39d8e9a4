package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Config paths are the JSON keys joined with dots, e.g. "downloader.profile".
// Keys tagged omitempty are addressable even while unset.

// GetByPath returns the value at a dot-notation path.
func GetByPath(cfg *Config, path string) (any, error) {
	v, err := lookup(cfg, path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetByPath parses value according to the type of the key at path and
// stores it. Lists take comma-separated items. Sections cannot be set.
func SetByPath(cfg *Config, path, value string) error {
	v, err := lookup(cfg, path)
	if err != nil {
		return err
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s expects true or false, got %q", path, value)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", path, value)
		}
		v.SetInt(n)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%s: unsupported list type %s", path, v.Type())
		}
		v.Set(reflect.ValueOf(splitList(value)).Convert(v.Type()))
	case reflect.Struct:
		return fmt.Errorf("%s is a section, set one of its keys instead", path)
	default:
		return fmt.Errorf("%s: unsupported type %s", path, v.Type())
	}
	return nil
}

// ListPaths returns every leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	result := make(map[string]any)
	collectPaths("", reflect.ValueOf(cfg).Elem(), result)
	return result
}

// Sanitize returns a copy of the config with the bot token masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Telegram.AllowFrom = slices.Clone(cfg.Telegram.AllowFrom)
	if c.Telegram.Token != "" {
		c.Telegram.Token = maskToken(c.Telegram.Token)
	}
	return &c
}

// maskToken keeps the bot ID before the colon and the last 4 chars.
func maskToken(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	if id, _, ok := strings.Cut(s, ":"); ok && len(id) < len(s)-4 {
		return id + ":****" + s[len(s)-4:]
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func lookup(cfg *Config, path string) (reflect.Value, error) {
	v := reflect.ValueOf(cfg).Elem()
	for _, key := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("key not found: %s (%s is not a section)", path, key)
		}
		f, ok := fieldByKey(v, key)
		if !ok {
			return reflect.Value{}, fmt.Errorf("key not found: %s", path)
		}
		v = f
	}
	return v, nil
}

func fieldByKey(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := range t.NumField() {
		if jsonKey(t.Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func jsonKey(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func collectPaths(prefix string, v reflect.Value, result map[string]any) {
	t := v.Type()
	for i := range t.NumField() {
		path := jsonKey(t.Field(i))
		if prefix != "" {
			path = prefix + "." + path
		}
		if f := v.Field(i); f.Kind() == reflect.Struct {
			collectPaths(path, f, result)
		} else {
			result[path] = f.Interface()
		}
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
