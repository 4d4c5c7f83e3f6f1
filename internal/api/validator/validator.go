package validator

import (
	"errors"

	"kindred/backend/internal/community"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the service's custom tags.
type Validator struct {
	cli *validator.Validate
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (v *Validator) formatError(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Error(),
		})
	}
	return out
}

// ValidateStruct validates s by its `validate` tags.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks a single value against tag.
func (v *Validator) Validate(value interface{}, tag string) []ValidationError {
	if err := v.cli.Var(value, tag); err != nil {
		return v.formatError(err)
	}
	return nil
}

// New registers the custom "mood" tag and uses json names in field errors.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(jsonName)
	_ = cli.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		return community.ValidMood(fl.Field().String())
	})
	return &Validator{cli: cli}
}
