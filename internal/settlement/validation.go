package settlement

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	MaxProjectIDLength = 64
	MaxBuyerNameLength = 200
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("project_id", func(fl validator.FieldLevel) bool {
		return projectIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsPrint(r) {
				return false
			}
		}
		return true
	})
	return v
}

// describe turns validator output into a single buyer-facing sentence
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "project_id":
		return fmt.Sprintf("%s may only contain letters, digits, '-' and '_'", fe.Field())
	case "printable":
		return fmt.Sprintf("%s contains non-printable characters", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
