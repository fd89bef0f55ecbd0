package validator

import (
	"errors"
	"fmt"
	"strings"

	"staybook/pkg/logger"
	"staybook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type RefundValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRefundValidator(log *logger.Logger) *RefundValidator {
	log.Info("Refund validator initialized successfully")
	return &RefundValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// ValidatePolicy expects tiers already sorted by threshold, highest first.
func (v *RefundValidator) ValidatePolicy(policy *model.RefundPolicy) error {
	if err := v.structErrors(policy); err != nil {
		return err
	}

	var errs ValidationErrors
	for i, tier := range policy.Tiers {
		field := fmt.Sprintf("Tiers[%d]", i)
		if !tier.RefundPercentage.Valid() {
			errs = append(errs, ValidationError{Field: field + ".RefundPercentage", Message: "refund_percentage must be between 0 and 100"})
		}
		if i > 0 && tier.MinDaysBeforeCheckIn == policy.Tiers[i-1].MinDaysBeforeCheckIn {
			errs = append(errs, ValidationError{
				Field:   field + ".MinDaysBeforeCheckIn",
				Message: fmt.Sprintf("threshold %d days is used by more than one tier", tier.MinDaysBeforeCheckIn),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *RefundValidator) ValidateDecision(decision *model.RefundDecision) error {
	if err := v.structErrors(decision); err != nil {
		return err
	}
	if decision.Action == model.RefundReject && decision.Reason == "" {
		return ValidationErrors{{Field: "Reason", Message: "reason is required when rejecting a refund"}}
	}
	return nil
}

func (v *RefundValidator) structErrors(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
