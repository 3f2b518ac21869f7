//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// JobInput is the submission payload for a generation job.
// Exactly one of CSVMapping or GitHubURL must be set.
type JobInput struct {
	CSVMapping  string `json:"csv_mapping,omitempty" validate:"required_without=GitHubURL,excluded_with=GitHubURL"`
	GitHubURL   string `json:"github_url,omitempty" validate:"omitempty,url"`
	BatchNumber string `json:"batch_number" validate:"required,max=64,excludesall=/\\"`
	UserID      string `json:"user_id" validate:"required,max=256"`
	SessionID   string `json:"session_id,omitempty" validate:"max=256"`
	BatchSize   int    `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
}

var inputValidator = newValidator()

// newValidator reports fields by their JSON names so messages match the request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from the identifying fields.
// The CSV body is left untouched apart from blank-only content becoming empty.
func (in *JobInput) Normalize() {
	in.GitHubURL = strings.TrimSpace(in.GitHubURL)
	in.BatchNumber = strings.TrimSpace(in.BatchNumber)
	in.UserID = strings.TrimSpace(in.UserID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	if strings.TrimSpace(in.CSVMapping) == "" {
		in.CSVMapping = ""
	}
}

// Validate validates the JobInput using the validator.
func (in *JobInput) Validate() error {
	return inputValidator.Struct(in)
}

// ValidationMessage renders the first validation failure of err as a sentence
// naming the offending request field. Other errors are returned as-is.
func ValidationMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", err.Error()
	}
	fe := verrs[0]
	field = fe.Field()
	switch fe.Tag() {
	case "required":
		return field, field + " is required"
	case "required_without":
		return field, "one of csv_mapping or github_url is required"
	case "excluded_with":
		return field, "csv_mapping and github_url are mutually exclusive"
	case "url":
		return field, field + " must be a valid URL"
	case "max":
		return field, fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return field, fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "excludesall":
		return field, field + " must not contain path separators"
	default:
		return field, fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
