package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Get returns the singleton instance of the validator.
// Field names in validation errors use the struct's json tag.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// MissingFields runs struct validation and returns the names of fields that
// failed a "required" rule. Any other validation failure is returned as err.
func MissingFields(s any) ([]string, error) {
	err := Get().Struct(s)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	var missing []string
	for _, fe := range verrs {
		if fe.Tag() != "required" {
			return nil, fe
		}
		missing = append(missing, fe.Field())
	}
	return missing, nil
}
