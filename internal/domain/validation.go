package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// usernameChars is the character set accepted by the "username" rule
var usernameChars = regexp.MustCompile(`^[\w.@+-]+$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameChars.MatchString(fl.Field().String())
	})
	return v
}

// Validator returns the validator shared by services and the web layer.
// Field names in its errors are the json tag names.
func Validator() *validator.Validate {
	return validate
}

// FieldMessage renders one failed rule as a user facing message
func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return fmt.Sprintf("must match %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// FieldErrors flattens validator errors into json field -> message
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = FieldMessage(fe)
	}
	return out
}

// ValidateStruct checks s against its validate tags. messages replaces the
// default text, keyed by "field.tag" or by "field" for any rule of that field.
func ValidateStruct(s interface{}, messages map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := verr.Fields[field]; seen {
			continue
		}
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg, ok = messages[field]
		}
		if !ok {
			msg = FieldMessage(fe)
		}
		verr.Add(field, msg)
	}
	return verr
}
