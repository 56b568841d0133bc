package controllers

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/CUknot/realty_crm/services"
)

// RegisterValidators installs the custom binding tags used by request inputs
// on gin's validator engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("referral_category", func(fl validator.FieldLevel) bool {
		return services.ValidCategory(fl.Field().String())
	})
}
