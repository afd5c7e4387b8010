// Package validate normalizes incoming requests and checks them against the
// rules of each request shape. Violations are reported per field so a client
// can see every problem at once.
package validate

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"blog/pkg/models"
)

// FieldErrors maps a request field name to its violation messages in the
// order they were detected.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(fe[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Merge combines two reports into one. It returns nil when both are empty.
func Merge(reports ...FieldErrors) FieldErrors {
	var out FieldErrors
	for _, fe := range reports {
		for field, msgs := range fe {
			if out == nil {
				out = FieldErrors{}
			}
			out[field] = append(out[field], msgs...)
		}
	}
	return out
}

var labels = map[string]string{
	"pid":        "Post ID",
	"title":      "Title",
	"content":    "Content",
	"course":     "Course",
	"username":   "Username",
	"text":       "Text",
	"sortByDate": "Sort option",
	"startDate":  "Start date",
	"endDate":    "End date",
}

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return models.Course(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// check runs the struct rules on req and converts the result into FieldErrors.
// It returns nil when req is valid.
func check(req any) FieldErrors {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	fe := FieldErrors{}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		fe.add("request", err.Error())
		return fe
	}
	for _, e := range errs {
		fe.add(e.Field(), message(e.Field(), e))
		if e.Tag() == "required" {
			for _, msg := range emptyValueMessages(req, e) {
				fe.add(e.Field(), msg)
			}
		}
	}
	return fe
}

// emptyValueMessages runs the rules listed after "required" on the field's
// zero value, since validator stops at the first failing tag.
func emptyValueMessages(req any, e validator.FieldError) []string {
	t := reflect.TypeOf(req)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	sf, ok := t.FieldByName(e.StructField())
	if !ok {
		return nil
	}

	_, rest, found := strings.Cut(sf.Tag.Get("validate"), "required")
	if !found {
		return nil
	}

	var msgs []string
	zero := reflect.Zero(sf.Type).Interface()
	for _, tag := range strings.Split(strings.TrimPrefix(rest, ","), ",") {
		if tag == "" {
			continue
		}
		errs, ok := v.Var(zero, tag).(validator.ValidationErrors)
		if !ok {
			continue
		}
		for _, ve := range errs {
			msgs = append(msgs, message(e.Field(), ve))
		}
	}
	return msgs
}

func message(field string, e validator.FieldError) string {
	label, ok := labels[field]
	if !ok {
		label = field
	}

	switch e.Tag() {
	case "required":
		return label + " is required"
	case "min":
		unit := "characters"
		if e.Param() == "1" {
			unit = "character"
		}
		return fmt.Sprintf("%s must be at least %s %s long", label, e.Param(), unit)
	case "course":
		return "Course must be one of the following: " + models.CourseList()
	case "oneof":
		return fmt.Sprintf("Invalid %s (%s)", strings.ToLower(label), strings.ReplaceAll(e.Param(), " ", " or "))
	case "objectid":
		return "Invalid " + label + " format"
	case "date":
		return label + " must be a valid date (YYYY-MM-DD or RFC 3339)"
	}
	return fmt.Sprintf("%s failed on the %q rule", label, e.Tag())
}

const dateLayout = "2006-01-02"

// ParseDate accepts a calendar date (taken as midnight UTC) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
