package utils

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/campusfeed/campusfeed/feed"
)

var (
	registerOnce sync.Once
	hhmmRe       = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// RegisterValidators adds the feed-specific tags to gin's validator engine:
// posttype, reaction, rsvp, hhmm and isodate.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("posttype", func(fl validator.FieldLevel) bool {
			_, err := feed.ParsePostType(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("reaction", func(fl validator.FieldLevel) bool {
			_, err := feed.ParseReactionType(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("rsvp", func(fl validator.FieldLevel) bool {
			_, err := feed.ParseResponse(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.DateOnly, fl.Field().String())
			return err == nil
		})
	})
}

// DescribeValidation flattens validator errors into FieldErrors.
func DescribeValidation(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err == nil {
			return nil
		}
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "posttype":
		return fmt.Sprintf("%s must be event, lost_found or announcement", fe.Field())
	case "reaction":
		return fmt.Sprintf("%s is not a supported reaction", fe.Field())
	case "rsvp":
		return fmt.Sprintf("%s must be going, interested or not_going", fe.Field())
	case "hhmm":
		return fmt.Sprintf("%s must be a 24-hour HH:MM time", fe.Field())
	case "isodate":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
