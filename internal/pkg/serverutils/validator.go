package serverutils

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ValidateRequest checks struct tags on a parsed request body. The returned
// validator.ValidationErrors is handled by the error middleware.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}
