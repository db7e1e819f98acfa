// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sanitize

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field limits for reviews.
const (
	MaxNameLength    = 100
	MinNameLength    = 2
	MaxCommentLength = 1000
	MinCommentLength = 10
	MaxProjectLength = 100
	MaxLabelLength   = 100
	MinRating        = 1
	MaxRating        = 5
)

// ReviewInput is the user-editable part of a review.
type ReviewInput struct {
	Name    string `json:"name" validate:"min=2,max=100"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"min=10,max=1000"`
	Project string `json:"project" validate:"max=100"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CleanReview sanitizes every field of in.
func CleanReview(in ReviewInput) ReviewInput {
	return ReviewInput{
		Name:    SanitizeText(in.Name, MaxNameLength),
		Rating:  in.Rating,
		Comment: SanitizeText(in.Comment, MaxCommentLength),
		Project: SanitizeText(in.Project, MaxProjectLength),
	}
}

// ValidateReview sanitizes in and checks it against the review constraints
// and the spam policy. It returns the cleaned input, whether it should be
// flagged for moderation, and field-scoped problems (nil when valid).
func ValidateReview(in ReviewInput, policy SpamPolicy) (ReviewInput, bool, map[string]string) {
	clean := CleanReview(in)
	fields := FieldErrors(clean)

	var flagged bool
	for _, f := range []struct{ name, text string }{
		{"name", clean.Name},
		{"comment", clean.Comment},
	} {
		isFlagged, rejected := CheckSpam(f.text, policy)
		if rejected {
			if fields == nil {
				fields = map[string]string{}
			}
			if _, exists := fields[f.name]; !exists {
				fields[f.name] = "looks like spam"
			}
		}
		flagged = flagged || isFlagged
	}

	return clean, flagged, fields
}

// FieldErrors runs the struct constraints and maps failures to readable
// messages keyed by JSON field name.
func FieldErrors(in ReviewInput) map[string]string {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": "invalid input"}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Kind() == reflect.Int {
		return fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
