package config

import (
	"reflect"

	rferr "github.com/resumeflow/resumeflow-core/pkg/errors"
)

// Validator is an optional interface configuration structs may
// implement. If the struct passed to [Loader.Load] implements it, its
// Validate method runs after the tag-based `required` checks pass.
//
// Validate should return the first validation failure, or nil. Errors
// that are already [*rferr.Error] pass through unchanged; anything else
// is wrapped with [rferr.CodeValidation].
//
// Example:
//
//	func (c *Config) Validate() error {
//	    if c.MaxRetries < 1 {
//	        return rferr.Newf(rferr.CodeValidation,
//	            "config: max retries must be at least 1, got %d", c.MaxRetries)
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

// validate runs required-tag validation, then the Validator interface
// if implemented. cfg is the original interface value (for the type
// assertion); rv the dereferenced struct value.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isPlatformErr := rferr.AsError(err); isPlatformErr {
				return err
			}
			return rferr.Wrap(err, rferr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired walks the struct checking that every field tagged
// `required:"true"` is non-zero. path accumulates the dotted field
// path for error messages (e.g., "Keycloak.ClientSecret").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return rferr.Newf(rferr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
