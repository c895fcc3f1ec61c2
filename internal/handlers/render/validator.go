package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notblank", validateNotBlank)
	validate.RegisterTagNameFunc(useJSONTagNames)
	return validate
}

// Return on 'TagName' json tag instead of struct name
// Look at documentation of 'RegisterTagNameFunc' for more details
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// String has something besides spaces
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
