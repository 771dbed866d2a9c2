package shop

import (
	"time"
	"unicode/utf8"
)

// Validator checks a single field value. It never modifies the value.
type Validator func(field string, v any) error

// IsInt accepts int64 values.
func IsInt(field string, v any) error {
	if _, ok := v.(int64); !ok {
		return fieldError(ErrWrongType, field, "int")
	}
	return nil
}

// IsString accepts string values.
func IsString(field string, v any) error {
	if _, ok := v.(string); !ok {
		return fieldError(ErrWrongType, field, "string")
	}
	return nil
}

// IsBool accepts bool values.
func IsBool(field string, v any) error {
	if _, ok := v.(bool); !ok {
		return fieldError(ErrWrongType, field, "bool")
	}
	return nil
}

// IsTime accepts time.Time values.
func IsTime(field string, v any) error {
	if _, ok := v.(time.Time); !ok {
		return fieldError(ErrWrongType, field, "time")
	}
	return nil
}

// MinLength requires at least n characters.
func MinLength(n int) Validator {
	return func(field string, v any) error {
		s, ok := v.(string)
		if !ok {
			return fieldError(ErrWrongType, field, "string")
		}
		if utf8.RuneCountInString(s) < n {
			return fieldError(ErrMinLengthUndershot, field, n)
		}
		return nil
	}
}

// MaxLength allows at most n characters.
func MaxLength(n int) Validator {
	return func(field string, v any) error {
		s, ok := v.(string)
		if !ok {
			return fieldError(ErrWrongType, field, "string")
		}
		if utf8.RuneCountInString(s) > n {
			return fieldError(ErrMaxLengthExceeded, field, n)
		}
		return nil
	}
}

// MinValue requires an integer of at least n.
func MinValue(n int64) Validator {
	return func(field string, v any) error {
		i, ok := v.(int64)
		if !ok {
			return fieldError(ErrWrongType, field, "int")
		}
		if i < n {
			return fieldError(ErrMinimumValueUndershot, field, n)
		}
		return nil
	}
}

// MaxValue allows an integer of at most n.
func MaxValue(n int64) Validator {
	return func(field string, v any) error {
		i, ok := v.(int64)
		if !ok {
			return fieldError(ErrWrongType, field, "int")
		}
		if i > n {
			return fieldError(ErrMaximumValueExceeded, field, n)
		}
		return nil
	}
}

// Optional runs vs only for non-nil values, so nil clears the field.
func Optional(vs ...Validator) Validator {
	return func(field string, v any) error {
		if v == nil {
			return nil
		}
		for _, validate := range vs {
			if err := validate(field, v); err != nil {
				return err
			}
		}
		return nil
	}
}
