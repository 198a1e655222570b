package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate validates a Config using struct tags and the duration fields
// that validator's built-in tags can't express. Returns an error with
// actionable messages if validation fails.
func Validate(c *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their yaml key so messages name the setting the
	// operator actually wrote.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if _, err := time.ParseDuration(c.DBConnectionTimeout); err != nil {
		return fmt.Errorf("db_connection_timeout: invalid duration %q: %w", c.DBConnectionTimeout, err)
	}
	if _, err := time.ParseDuration(c.HTTPTimeout); err != nil {
		return fmt.Errorf("http_timeout: invalid duration %q: %w", c.HTTPTimeout, err)
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must satisfy %s %s", field, tag, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
