package middleware

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks the validate tags of a request DTO.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
