package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

// RegisterValidators installs the custom binding tags and reports fields by
// their json name. Call once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			if form := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]; form != "" {
				return form
			}
			return fld.Name
		}
		return name
	})

	validators := map[string]validator.Func{
		"system_role":     validateSystemRole,
		"approval_status": validateApprovalStatus,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func validateSystemRole(fl validator.FieldLevel) bool {
	_, ok := model.ParseSystemRole(fl.Field().String())
	return ok
}

func validateApprovalStatus(fl validator.FieldLevel) bool {
	return model.ApprovalStatus(strings.ToUpper(fl.Field().String())).Valid()
}
