// FILE: internal/pkg/serverutils/validator.go
package serverutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation. Failures bubble up as
// validator.ValidationErrors and get mapped to 400 by the error handler.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}
