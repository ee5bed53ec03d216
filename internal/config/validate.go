package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	apperrors "stock-analyzer/internal/errors"
)

var validate = validator.New()

// ApplyDefaults fills zero fields of v from their default tags.
func ApplyDefaults(v interface{}) error {
	if err := defaults.Set(v); err != nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, err.Error())
	}
	return nil
}

// ValidateStruct validates v against its validate tags. The first failure is
// returned as a *ValidationError, which wraps ErrConfigInvalid.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(fieldName(fe), fe.Value(), errorMessage(fe))
	}
	return apperrors.Wrap(apperrors.ErrConfigInvalid, err.Error())
}

// fieldName drops the root struct name from the namespace, e.g. Config.Analysis.Confidence -> Analysis.Confidence.
func fieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// ResolvePaths fills empty database paths relative to configDir.
func (c *Config) ResolvePaths(configDir string) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = filepath.Join(configDir, "cache.db")
	}
	if c.Data.DBPath == "" {
		c.Data.DBPath = filepath.Join(configDir, "bars.db")
	}
	if c.Log.File && c.Log.FilePath == "" {
		c.Log.FilePath = filepath.Join(configDir, "logs", "analyzer.log")
	}
}
