// Package config loads configuration for resume-flow services from
// struct tag defaults, an optional YAML/JSON file, and environment
// variables, resolved in that priority order (env wins):
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// Defaults live in the code, a config file carries per-environment
// overrides, and env vars (ConfigMaps, Secrets) have the final word.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` — maps the field to an environment variable
//   - `envDefault:"value"` — default applied when the field is zero
//   - `required:"true"` — validation fails if the field is zero after loading
//
// File-based loading goes through the `yaml` / `json` tags, so fields
// that should be file-configurable need those too.
//
// # Usage
//
//	type ServiceConfig struct {
//	    ListenAddr string        `env:"LISTEN_ADDR" envDefault:":8080" yaml:"listen_addr"`
//	    Realm      string        `env:"REALM" envDefault:"resume-flow" yaml:"realm" required:"true"`
//	    Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s" yaml:"timeout"`
//	}
//
//	cfg := config.MustLoad[ServiceConfig](
//	    config.New().WithEnvPrefix("RESUMEFLOW").WithFile("config.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// durationType caches the reflect.Type for time.Duration. Duration's
// underlying kind is int64, so it must be told apart from plain int64
// fields during traversal.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration with the layered strategy described in
// the package documentation. Construct with [New], configure with
// [Loader.WithEnvPrefix] and [Loader.WithFile], then call [Loader.Load].
//
// Loader is not safe for concurrent use; create one per Load call.
type Loader struct {
	envPrefix string
	filePath  string
}

// New creates a [Loader] that reads from environment variables only
// (no file, no prefix).
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets a prefix joined with an underscore to every
// variable name from the "env" tag: WithEnvPrefix("RESUMEFLOW") makes a
// field tagged `env:"REALM"` read RESUMEFLOW_REALM. The prefix is
// uppercased; an empty prefix disables prefixing. Returns the Loader
// for chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of an optional YAML (.yaml/.yml) or JSON
// (.json) configuration file, detected by extension. A missing file is
// not an error; an unrecognized extension is. Paths containing ".."
// are rejected. Returns the Loader for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct,
// applying envDefault tags, then file values, then environment
// variables. Afterwards fields tagged `required:"true"` must be
// non-zero and, if cfg implements [Validator], its Validate method
// must pass.
//
// Loading failures carry [rferr.CodeInternalConfiguration]; validation
// failures carry [rferr.CodeValidationRequired] or
// [rferr.CodeValidation].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return rferr.New(rferr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return rferr.New(rferr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad creates a zero value of T, loads configuration into it, and
// returns it, panicking on failure. Intended for use in func main,
// where an invalid configuration should stop the process.
//
//	cfg := config.MustLoad[ServiceConfig](config.New().WithEnvPrefix("RESUMEFLOW"))
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads and unmarshals the optional config file.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return rferr.New(rferr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File-based configuration is optional.
		}
		return rferr.Wrapf(err, rferr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return rferr.Wrapf(err, rferr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return rferr.Wrapf(err, rferr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return rferr.Newf(rferr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// applyDefaults walks the struct and sets zero-valued fields to their
// envDefault tag value. Non-zero fields keep their value.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return rferr.Wrapf(err, rferr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv walks the struct and sets fields from the environment
// variables named by their "env" tag. A nested struct's env tag is
// joined into the prefix for its children with "_", so
//
//	type Config struct {
//	    Keycloak KeycloakConfig `env:"KEYCLOAK"`
//	}
//
// with a field tagged `env:"REALM"` inside reads KEYCLOAK_REALM (plus
// any global prefix).
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nestedPrefix := prefix
			if envTag != "" {
				if nestedPrefix != "" {
					nestedPrefix = nestedPrefix + "_" + envTag
				} else {
					nestedPrefix = envTag
				}
			}
			if err := applyEnv(field, nestedPrefix); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		envKey := envTag
		if prefix != "" {
			envKey = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return rferr.Wrapf(err, rferr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, envKey)
		}
	}

	return nil
}

// setField parses value and assigns it according to the field's kind.
// Supported: string (including named string types such as
// keycloak.Secret), bool, signed integers, time.Duration, and []string
// (comma-separated, whitespace-trimmed).
func setField(field reflect.Value, value string) error {
	// time.Duration first: its Kind is Int64 but it needs
	// time.ParseDuration, not ParseInt.
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// MakeSlice with the field's own type so named slice types
		// (type Roles []string) assign without panicking.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
