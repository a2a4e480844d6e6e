package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags and reports the first
// violation as an invalid-input error.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return domain.InvalidInput("%s is required", fe.Field())
		case "max":
			return domain.InvalidInput("%s must be at most %s", fe.Field(), fe.Param())
		case "oneof":
			return domain.InvalidInput("%s must be one of [%s]", fe.Field(), fe.Param())
		default:
			return domain.InvalidInput("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return domain.InvalidInput("%v", err)
}
