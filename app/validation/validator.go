// Package validation wires go-playground/validator into Echo and turns
// validation failures into the machine-readable issue lists the API
// returns with 400 responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	httpdto "github.com/microlearn/auth-service/app/dto/http"
)

type EchoValidator struct {
	validate *validator.Validate
}

func NewEchoValidator() *EchoValidator {
	v := validator.New()

	// Report fields by their JSON name, which is what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &EchoValidator{validate: v}
}

func (ev *EchoValidator) Validate(i interface{}) error {
	return ev.validate.Struct(i)
}

// Issues flattens a validator error into field-level issues. A non-validator
// error yields a single unnamed issue so callers always get a list.
func Issues(err error) []httpdto.FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []httpdto.FieldIssue{{Message: "invalid request body"}}
	}

	issues := make([]httpdto.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, httpdto.FieldIssue{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return issues
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
