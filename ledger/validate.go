/*
validate.go - Payer input validation

PURPOSE:
  Validates caller-supplied payer fields before anything touches storage.
  Validation ordering is significant for user-facing error reporting:

    1. required-field checks
    2. format checks (telephone, lat/lon ranges, status, monetary signs)
    3. cross-field/uniqueness checks (zone existence, name uniqueness)

  Phases 1 and 2 live here and are pure. Phase 3 needs store reads and
  runs in the billing service, which appends its failures to the same
  accumulated ValidationError - callers always get the full list, never
  just the first failure.

TELEPHONE FORMAT:
  Deliberately loose: digits, spaces, '+', '-', parentheses, 7-20 chars.
  Municipal registries hold numbers written down at a counter, not E.164.
*/
package ledger

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names in messages, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	return v
}

// PayerInput carries the caller-supplied fields for create and update.
// AmountPayable is intentionally absent: it is derived, never accepted.
type PayerInput struct {
	Name         string       `json:"name" validate:"required"`
	OwnerName    string       `json:"owner_name" validate:"required"`
	Type         string       `json:"type" validate:"required"`
	Category     string       `json:"category" validate:"required"`
	Telephone    string       `json:"telephone" validate:"omitempty,phone"`
	LocationText string       `json:"location_text"`
	Latitude     *float64     `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64     `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	ZoneID       int64        `json:"zone_id" validate:"required"`
	SubZoneID    *int64       `json:"sub_zone_id"`
	Status       PayerStatus  `json:"status"`
	Ledger       LedgerFields `json:"-" validate:"-"`
}

// ValidateInput runs the required and format phases and returns every
// applicable failure, required-field messages first. A nil result means
// both phases passed; cross-field checks still remain.
func ValidateInput(in PayerInput) []FieldError {
	var required, format []FieldError

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			// Only reachable on a malformed input type, which is a
			// programming error.
			return []FieldError{{Field: "input", Message: err.Error()}}
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				required = append(required, FieldError{Field: fe.Field(), Message: "is required"})
			} else {
				format = append(format, FieldError{Field: fe.Field(), Message: formatMessage(fe)})
			}
		}
	}

	if in.Status != "" && !in.Status.Valid() {
		format = append(format, FieldError{Field: "status", Message: "must be one of Active, Inactive, Suspended"})
	}
	format = append(format, in.Ledger.Validate()...)

	return append(required, format...)
}

func formatMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "phone":
		return "must contain only digits, spaces, '+', '-' and parentheses"
	case "gte", "lte":
		if fe.Field() == "latitude" {
			return "must be between -90 and 90"
		}
		return "must be between -180 and 180"
	default:
		return "is invalid"
	}
}
