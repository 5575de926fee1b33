// Package constraint holds the write-time rules shared by every path that persists entities:
// field validation through validator tags and translation of unique/check violations
// reported by the database.
package constraint

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
)

const MsgSelfSubscription = "self-subscription forbidden"

var (
	usernameRe = regexp.MustCompile(`^[\w.@+-]+\z`)
	slugRe     = regexp.MustCompile(`^[-a-zA-Z0-9_]+\z`)
	colorRe    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}\z`)

	once     sync.Once
	instance *validator.Validate
	naming   = schema.NamingStrategy{}
)

// Validator returns the shared validator with the domain tags registered:
// username, slug and color.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(fieldName)
		mustRegister(v, "username", usernameRe)
		mustRegister(v, "slug", slugRe)
		mustRegister(v, "color", colorRe)
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

func fieldName(fld reflect.StructField) string {
	if tag, ok := fld.Tag.Lookup("json"); ok {
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return naming.ColumnName("", fld.Name)
}

// Check validates v and reports the first broken rule as a ValidationError.
func Check(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate")
	}
	return apperr.Validation("%s", describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "username":
		return fmt.Sprintf("%s may contain only letters, digits and @/./+/-/_", field)
	case "slug":
		return fmt.Sprintf("%s may contain only letters, digits, hyphens and underscores", field)
	case "color":
		return fmt.Sprintf("%s must be a #RRGGBB color", field)
	case "nefield":
		if field == "author_id" {
			return MsgSelfSubscription
		}
		return fmt.Sprintf("%s must differ from %s", field, naming.ColumnName("", fe.Param()))
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// IsDuplicate reports whether err is a unique index violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// IsCheckViolation reports whether err is a CHECK constraint violation.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "violates check constraint")
}

// Unique translates a duplicate-key failure of a write into a ConflictError carrying the
// given message. Other errors pass through unchanged.
func Unique(err error, format string, args ...interface{}) error {
	if IsDuplicate(err) {
		return apperr.Conflict(format, args...)
	}
	return err
}

// NotSelf rejects subscriptions of a user to themselves.
func NotSelf(authorID, followerID uint64) error {
	if authorID == followerID {
		return apperr.Validation(MsgSelfSubscription)
	}
	return nil
}
