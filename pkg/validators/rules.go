package validators

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func fail(msg string) error {
	return errors.New(msg)
}

// Trim strips surrounding whitespace from strings and leaves anything else
// alone
func Trim() Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), nil
		}

		return v, nil
	}
}

func NotEmpty(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		if v == nil {
			return v, fail(msg)
		}

		if s, ok := v.(string); ok && s == "" {
			return v, fail(msg)
		}

		return v, nil
	}
}

func IsString(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		if _, ok := v.(string); !ok {
			return v, fail(msg)
		}

		return v, nil
	}
}

// Length checks the rune count of a string is within [min, max]
func Length(min, max int, msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, _ := v.(string)

		n := utf8.RuneCountInString(s)
		if n < min || n > max {
			return v, fail(msg)
		}

		return v, nil
	}
}

func IsEmail(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, ok := v.(string)
		if !ok || validate.Var(s, "required,email") != nil {
			return v, fail(msg)
		}

		return v, nil
	}
}

func IsURL(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, ok := v.(string)
		if !ok || validate.Var(s, "required,http_url") != nil {
			return v, fail(msg)
		}

		return v, nil
	}
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02"}

// ISO8601 accepts a full RFC 3339 timestamp or a plain date and hands the
// parsed time.Time to the following rules
func ISO8601(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, fail(msg)
		}

		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}

		return v, fail(msg)
	}
}

// StrongPassword wants at least one lowercase, uppercase, digit and symbol
func StrongPassword(msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, _ := v.(string)

		var lower, upper, digit, symbol bool
		for _, c := range s {
			switch {
			case unicode.IsLower(c):
				lower = true
			case unicode.IsUpper(c):
				upper = true
			case unicode.IsDigit(c):
				digit = true
			case unicode.IsPunct(c) || unicode.IsSymbol(c):
				symbol = true
			}
		}

		if !lower || !upper || !digit || !symbol {
			return v, fail(msg)
		}

		return v, nil
	}
}

// Equals compares the value with another body field
func Equals(field, msg string) Rule {
	return func(_ context.Context, v any, r *Request) (any, error) {
		raw, _ := r.BodyValue(field)

		s, ok := v.(string)
		other, otherOK := raw.(string)
		if !ok || !otherOK || s != other {
			return v, fail(msg)
		}

		return v, nil
	}
}

func Matches(re *regexp.Regexp, msg string) Rule {
	return func(_ context.Context, v any, _ *Request) (any, error) {
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return v, fail(msg)
		}

		return v, nil
	}
}

// Custom runs fn without changing the value. fn may return a typed error to
// abort the request.
func Custom(fn func(ctx context.Context, v any, r *Request) error) Rule {
	return func(ctx context.Context, v any, r *Request) (any, error) {
		return v, fn(ctx, v, r)
	}
}
