package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

// space matches the same whitespace a browser's \s does. RE2's \s alone is
// ASCII only.
const space = `\s\v\p{Z}\x{FEFF}`

var (
	emailPattern  = regexp.MustCompile(`^[^` + space + `@]+@[^` + space + `@]+\.[^` + space + `@]+$`)
	mobilePattern = regexp.MustCompile(`^\+?[\d` + space + `\-\(\)]{10,}$`)
	lowerPattern  = regexp.MustCompile(`[a-z]`)
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
)

// RegistrationForm is the sign-up form as submitted.
type RegistrationForm struct {
	FullName        string `validate:"trimmed_required,trimmed_min=2"`
	Email           string `validate:"trimmed_required,loose_email"`
	MobileNumber    string `validate:"trimmed_required,mobile"`
	Password        string `validate:"required,length_min=8,password_mix"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

// LoginForm only needs both inputs to be present.
type LoginForm struct {
	Email    string `validate:"trimmed_required"`
	Password string `validate:"required"`
}

// PasswordResetForm is the new-password form opened from a recovery link.
type PasswordResetForm struct {
	Password        string `validate:"required,length_min=8,password_mix"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

type messageKey struct {
	field Field
	tag   string
}

var messages = map[messageKey]string{
	{FullName, "trimmed_required"}:     "Full name is required",
	{FullName, "trimmed_min"}:          "Full name must be at least 2 characters",
	{Email, "trimmed_required"}:        "Email is required",
	{Email, "loose_email"}:             "Please enter a valid email address",
	{MobileNumber, "trimmed_required"}: "Mobile number is required",
	{MobileNumber, "mobile"}:           "Please enter a valid mobile number",
	{Password, "required"}:             "Password is required",
	{Password, "length_min"}:           "Password must be at least " + strconv.Itoa(minPasswordLength) + " characters",
	{Password, "password_mix"}:         "Password must contain uppercase, lowercase, and number",
	{ConfirmPassword, "eqfield"}:       "Passwords do not match",
}

var structFields = map[string]Field{
	"FullName":        FullName,
	"Email":           Email,
	"MobileNumber":    MobileNumber,
	"Password":        Password,
	"ConfirmPassword": ConfirmPassword,
}

var engine = newEngine()

func newEngine() *validator.Validate {
	v := validator.New()
	custom := map[string]validator.Func{
		"trimmed_required": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"trimmed_min": func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return textLength(strings.TrimSpace(fl.Field().String())) >= n
		},
		"length_min": func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return textLength(fl.Field().String()) >= n
		},
		"loose_email": func(fl validator.FieldLevel) bool {
			return IsEmail(fl.Field().String())
		},
		"mobile": func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		},
		"password_mix": func(fl validator.FieldLevel) bool {
			return HasPasswordMix(fl.Field().String())
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("validate: register " + tag + ": " + err.Error())
		}
	}
	return v
}

// textLength counts UTF-16 code units, the unit the web forms measure in.
// Characters outside the basic plane count twice.
func textLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// IsEmail reports whether s looks like local@domain.tld.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// HasPasswordMix reports whether s contains a lowercase letter, an
// uppercase letter and a digit, in any order.
func HasPasswordMix(s string) bool {
	return lowerPattern.MatchString(s) && upperPattern.MatchString(s) && digitPattern.MatchString(s)
}

// PasswordPolicy returns the first password-rule message that s violates,
// or "" when s is acceptable. Used by the identity engine so server-side
// checks match the form.
func PasswordPolicy(s string) string {
	errs := check(PasswordResetForm{Password: s, ConfirmPassword: s})
	return errs.Get(Password)
}

// Registration validates every field of f.
func Registration(f RegistrationForm) Errors {
	return check(f)
}

// Login checks that both inputs are present.
func Login(f LoginForm) Errors {
	return check(f)
}

// PasswordReset validates the new password and its confirmation.
func PasswordReset(f PasswordResetForm) Errors {
	return check(f)
}

func check(form any) Errors {
	var out Errors

	err := engine.Struct(form)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable with a non-struct argument.
		panic("validate: " + err.Error())
	}
	for _, fe := range verrs {
		field, ok := structFields[fe.StructField()]
		if !ok {
			continue
		}
		msg, ok := messages[messageKey{field, fe.Tag()}]
		if !ok {
			msg = "Invalid value"
		}
		if !out.Has(field) {
			out.Set(field, msg)
		}
	}
	return out
}
