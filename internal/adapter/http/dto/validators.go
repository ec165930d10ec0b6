package dto

import (
	"errors"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Only the identity orders a collection.
var sortSpecRe = regexp.MustCompile(`^id(,(?i:asc|desc))?$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("sortspec", validateSortSpec)
	}
}

func validateSortSpec(fl validator.FieldLevel) bool {
	return sortSpecRe.MatchString(fl.Field().String())
}

// IsSortError reports whether a binding error was raised by the sortspec rule.
func IsSortError(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == "sortspec" {
			return true
		}
	}
	return false
}
