package api

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"jamai-backend-go/internal/plans"
)

var referralCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// RegisterValidators adds the custom binding tags used by request models:
// paidplan (a catalog plan with a Stripe price) and referralcode.
func RegisterValidators(catalog *plans.Catalog) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("paidplan", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if !catalog.IsKnown(raw) {
			return false
		}
		return plans.IsPaid(catalog.Normalize(raw))
	}); err != nil {
		return fmt.Errorf("register paidplan validator: %w", err)
	}
	if err := v.RegisterValidation("referralcode", func(fl validator.FieldLevel) bool {
		return referralCodePattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register referralcode validator: %w", err)
	}
	return nil
}
