package errors

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidation converts a validator failure into an invalid_input error naming the
// first offending field and rule. Other errors pass through unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	field := strings.ToLower(first.Field())
	return New(CodeInvalidInput, field+" failed "+first.Tag()+" validation").
		WithMetadata("field", field, "rule", first.Tag())
}
