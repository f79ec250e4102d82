package core

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"rollcall/internal/types"
)

// phonePattern matches E.164 phone numbers: a leading plus and 8 to 15
// digits, no separators.
var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Validator wraps go-playground/validator with the domain rules the request
// DTOs use in their struct tags.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator with the custom tags registered:
//
//	phone_e164:  E.164 phone number
//	frequency:   recognized recurrence frequency
//	timezone_db: IANA timezone name resolvable by time.LoadLocation
//	time_of_day: "HH:MM" 24h clock value
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tag names.
	_ = v.RegisterValidation("phone_e164", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return types.Frequency(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("timezone_db", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("time_of_day", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 5 || s[2] != ':' {
			return false
		}
		t, err := time.Parse("15:04", s)
		return err == nil && t.Format("15:04") == s
	})

	return &Validator{v: v}
}

// ValidateStruct validates a request DTO against its struct tags, mapping
// failures to a validation AppError with per-field details.
func (val *Validator) ValidateStruct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeValidationInvalidPayload, "invalid request payload", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = failureMessage(fe)
	}

	// The first failure picks the top-level error code so single-field
	// mistakes get a precise code.
	return types.NewAppErrorWithDetails(
		codeForFailure(verrs[0]),
		"request validation failed",
		nil,
		details,
	)
}

func codeForFailure(fe validator.FieldError) types.ErrorCode {
	switch fe.Tag() {
	case "required":
		return types.ErrCodeValidationMissingField
	case "phone_e164":
		return types.ErrCodeValidationInvalidPhone
	case "frequency":
		return types.ErrCodeValidationInvalidFreq
	case "timezone_db":
		return types.ErrCodeValidationInvalidTZ
	case "max":
		if fe.Field() == "SenderName" {
			return types.ErrCodeValidationSenderTooLong
		}
	}
	return types.ErrCodeValidationInvalidPayload
}

func failureMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "phone_e164":
		return "must be an E.164 phone number (e.g. +233201234567)"
	case "frequency":
		return "must be one of: daily, weekly, monthly, quarterly, annually"
	case "timezone_db":
		return "must be a valid IANA timezone name"
	case "time_of_day":
		return "must be a HH:MM 24h time"
	case "max":
		return "exceeds the maximum length of " + fe.Param()
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
