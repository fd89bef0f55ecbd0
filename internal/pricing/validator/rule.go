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

type RuleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRuleValidator(log *logger.Logger) *RuleValidator {
	log.Info("Pricing rule validator initialized successfully")
	return &RuleValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// Validate checks the struct tags and the fields each rule type requires.
func (v *RuleValidator) Validate(rule *model.PricingRule) error {
	if err := v.validate.Struct(rule); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}

	var errs ValidationErrors
	if rule.FixedPrice.IsNegative() {
		errs = append(errs, ValidationError{Field: "FixedPrice", Message: "fixed_price cannot be negative"})
	}

	switch rule.RuleType {
	case model.RuleTypeDayOfWeek:
		if rule.DayOfWeek == nil {
			errs = append(errs, ValidationError{Field: "DayOfWeek", Message: "day_of_week is required for day_of_week rules"})
		}
	case model.RuleTypeDateRange:
		switch {
		case rule.StartDate == nil || rule.EndDate == nil:
			errs = append(errs, ValidationError{Field: "StartDate", Message: "start_date and end_date are required for date_range rules"})
		case !rule.StartDate.Before(*rule.EndDate):
			errs = append(errs, ValidationError{Field: "EndDate", Message: "end_date must be after start_date"})
		}
	}

	if len(errs) > 0 {
		return errs
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
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
