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

type InventoryValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewInventoryValidator(log *logger.Logger) *InventoryValidator {
	log.Info("Inventory validator initialized successfully")
	return &InventoryValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *InventoryValidator) ValidateRoom(room *model.Room) error {
	if err := v.structErrors(room); err != nil {
		return err
	}
	if room.DefaultPrice.IsNegative() {
		return ValidationErrors{{Field: "DefaultPrice", Message: "default_price cannot be negative"}}
	}
	return nil
}

func (v *InventoryValidator) ValidateRoomUpdate(update *model.RoomUpdate) error {
	if err := v.structErrors(update); err != nil {
		return err
	}
	if update.DefaultPrice != nil && update.DefaultPrice.IsNegative() {
		return ValidationErrors{{Field: "DefaultPrice", Message: "default_price cannot be negative"}}
	}
	return nil
}

func (v *InventoryValidator) ValidateOverride(override *model.AvailabilityOverride) error {
	if err := v.structErrors(override); err != nil {
		return err
	}
	if override.IsAvailable == nil && override.AvailableCount == nil && override.OverridePrice == nil {
		return ValidationErrors{{
			Field:   "AvailabilityOverride",
			Message: "one of is_available, available_count or override_price is required",
		}}
	}
	if override.OverridePrice != nil && override.OverridePrice.IsNegative() {
		return ValidationErrors{{Field: "OverridePrice", Message: "override_price cannot be negative"}}
	}
	return nil
}

func (v *InventoryValidator) structErrors(s any) error {
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
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
