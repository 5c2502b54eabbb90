package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation on a parsed request body and
// returns a ValidationError listing every failing field.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			errs[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
		}
		return NewValidationError(errs)
	}
	return nil
}
