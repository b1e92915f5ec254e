package middleware

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs validator tags against an already-bound value.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
