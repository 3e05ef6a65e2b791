package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	reID      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	phoneJunk = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

	v = newValidator()
)

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// resource ids are brand slugs or uuids
	_ = val.RegisterValidation("resource_id", func(fl validator.FieldLevel) bool {
		return reID.MatchString(fl.Field().String())
	})
	return val
}

// Struct runs the `validate` tags of s.
func Struct(s any) error { return v.Struct(s) }

// Fields flattens a validation error into field -> failed tag, for 400
// responses. Other errors yield nil.
func Fields(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Email trims and lowercases s and checks it is a plausible address.
func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	return s, v.Var(s, "max=254,email") == nil
}

// Phone strips common separators and requires E.164 (+15551234567).
func Phone(s string) (string, bool) {
	s = phoneJunk.Replace(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	return s, v.Var(s, "e164") == nil
}

// Contact normalizes an optional email/phone pair. At least one must be
// given and every given one must be valid.
func Contact(email, phone *string) (*string, *string, bool) {
	var e, p *string
	if email != nil && strings.TrimSpace(*email) != "" {
		s, ok := Email(*email)
		if !ok {
			return nil, nil, false
		}
		e = &s
	}
	if phone != nil && strings.TrimSpace(*phone) != "" {
		s, ok := Phone(*phone)
		if !ok {
			return nil, nil, false
		}
		p = &s
	}
	return e, p, e != nil || p != nil
}

// ID validates a resource identifier (brand slug or product uuid).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, v.Var(s, "required,resource_id") == nil
}

// Stock validates the stock filter of product listings: "", "in" or "out".
func Stock(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, v.Var(s, "omitempty,oneof=in out") == nil
}

// Page parses a 1-based page number; anything invalid is page 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > 1000 {
		return 1000
	}
	return n
}
