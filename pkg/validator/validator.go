package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vedran77/studychat/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add keeps the first message recorded for a field.
func (v ValidationErrors) Add(field, message string) {
	if _, ok := v[field]; !ok {
		v[field] = message
	}
}

// MaxMessageLength mirrors the limit the message service enforces.
const MaxMessageLength = domain.MaxContentLength

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(email, username, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)
	checkEmail(errs, email)

	username = strings.TrimSpace(username)
	if checkLength(errs, "username", "Username", username, 3, 50) {
		switch {
		case !usernamePattern.MatchString(username):
			errs.Add("username", "Username can only contain letters, numbers, _ and -")
		case domain.IsReservedUsername(username):
			errs.Add("username", "Username is reserved")
		}
	}

	checkLength(errs, "display_name", "Display name", strings.TrimSpace(displayName), 2, 100)
	checkPassword(errs, password)
	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)
	checkEmail(errs, email)
	if password == "" {
		errs.Add("password", "Password is required")
	}
	return errs
}

func ValidateMessage(content string) ValidationErrors {
	errs := make(ValidationErrors)
	switch domain.CheckContent(content) {
	case domain.ErrEmptyContent:
		errs.Add("content", "Message content is required")
	case domain.ErrContentTooLong:
		errs.Add("content", fmt.Sprintf("Message must be at most %d characters", MaxMessageLength))
	}
	return errs
}

func checkEmail(errs ValidationErrors, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}
}

// checkLength reports whether value is present and within [lo, hi] runes.
func checkLength(errs ValidationErrors, field, label, value string, lo, hi int) bool {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		errs.Add(field, label+" is required")
	case n < lo:
		errs.Add(field, fmt.Sprintf("%s must be at least %d characters", label, lo))
	case n > hi:
		errs.Add(field, label+" is too long")
	default:
		return true
	}
	return false
}

func checkPassword(errs ValidationErrors, password string) {
	if len(password) < minPasswordLength {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
		return
	}

	var missing []string
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		missing = append(missing, "one uppercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		missing = append(missing, "one lowercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		missing = append(missing, "one number")
	}
	if len(missing) > 0 {
		errs.Add("password", "Password must contain at least "+strings.Join(missing, ", "))
	}
}
