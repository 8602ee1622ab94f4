package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Same shape the hosted identity service accepts: local part, an @, a domain
// with at least one dot and a 2+ letter top-level segment. No case or
// whitespace normalization.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const punctuationSet = `!@#$%^&*(),.?":{}|<>`

func EmailFormat(email string) bool {
	return emailRe.MatchString(email)
}

// PasswordStrength reports whether a password is acceptable: at least 8
// characters, one uppercase, one lowercase, one digit, one character from the
// fixed punctuation set, and no whitespace anywhere. All conditions are
// conjunctive; callers get no detail about which one failed.
func PasswordStrength(password string) bool {
	// length is counted in runes, not bytes
	if utf8.RuneCountInString(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasPunct bool

	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(punctuationSet, r):
			hasPunct = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasPunct
}

// RegisterBindings hooks the two checks into gin's validator engine so
// request structs can use them as binding tags.
func RegisterBindings() {
	v, ok := binding.Validator.Engine().(*validator.Validate)

	if !ok {
		return
	}

	_ = v.RegisterValidation("emailformat", func(fl validator.FieldLevel) bool {
		return EmailFormat(fl.Field().String())
	})

	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return PasswordStrength(fl.Field().String())
	})
}
