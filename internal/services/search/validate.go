package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateDateRange, models.DateRange{})
	return v
}

// validateDateRange rejects empty or inverted ranges once both bounds parse
func validateDateRange(sl validator.StructLevel) {
	r := sl.Current().Interface().(models.DateRange)
	from, err := time.Parse(models.DateLayout, r.From)
	if err != nil {
		return
	}
	to, err := time.Parse(models.DateLayout, r.To)
	if err != nil {
		return
	}
	if !from.Before(to) {
		sl.ReportError(r.To, "To", "To", "gtfrom", "")
	}
}

// ValidateRequest checks a search request. The error wraps ErrInvalidRequest.
func ValidateRequest(v *validator.Validate, req *models.SearchRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", interfaces.ErrInvalidRequest)
	}
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", interfaces.ErrInvalidRequest, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "SearchRequest.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	case "gtfrom":
		return field + " must be after from"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
