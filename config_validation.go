package flatpanel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their YAML key so messages match the config file.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateConfig validates the configuration parameters
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	err := configValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.Join(msgs...)
}

func describeFieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s cannot be empty", field)
	case "uuid":
		return fmt.Errorf("%s must be a UUID, got: %v", field, fe.Value())
	case "oneof":
		return fmt.Errorf("invalid %s %v, must be one of: %s", field, fe.Value(), fe.Param())
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s, got: %v", field, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Errorf("%s must be at most %s, got: %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Errorf("%s must be greater than %s, got: %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}
