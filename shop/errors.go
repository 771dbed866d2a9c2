/*
errors.go - Error taxonomy of the shop core

PURPOSE:
  Every failure the core reports to a caller is one of the sentinels below,
  either bare (wrapped with context via fmt.Errorf) or inside a FieldError
  that names the offending field and the violated bound.

ERROR CATEGORIES:
  1. Field errors      - FieldIsNone, ForbiddenField, UnknownField, WrongType,
                         length and value bounds
  2. Database errors   - DuplicateObject, ForeignKeyNotExisting, ObjectNotFound
  3. Ledger errors     - CanOnlyBeRevokedOnce, RevokeIsFinal, NotRevocable,
                         ConsumerNeedsCredentials, InvalidDates
  4. Request errors    - NothingHasChanged, InvalidJSON

None of them is fatal. Describe() turns any error into the stable
category list and status code the HTTP layer surfaces; errors outside the
taxonomy are reported as internal faults without leaking their text.

USAGE:
  if errors.Is(err, shop.ErrDuplicateObject) {
      var fe *shop.FieldError
      errors.As(err, &fe) // fe.Field == "name"
  }

SEE ALSO:
  - validators.go: Produces the field errors
  - store/sqlite/constraints.go: Produces the database errors
  - api/handlers.go: Surfaces Describe() output
*/
package shop

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrFieldIsNone           = errors.New("field is none")
	ErrForbiddenField        = errors.New("forbidden field")
	ErrUnknownField          = errors.New("unknown field")
	ErrWrongType             = errors.New("wrong type")
	ErrMaxLengthExceeded     = errors.New("maximum length exceeded")
	ErrMinLengthUndershot    = errors.New("minimum length undershot")
	ErrMaximumValueExceeded  = errors.New("maximum value exceeded")
	ErrMinimumValueUndershot = errors.New("minimum value undershot")

	// ErrDuplicateObject is returned when a unique field already holds the
	// same value on another row.
	ErrDuplicateObject = errors.New("duplicate object")

	// ErrForeignKeyNotExisting is returned when a referenced row is missing.
	ErrForeignKeyNotExisting = errors.New("foreign key not existing")

	// ErrObjectNotFound is returned by getters and updates for unknown ids.
	ErrObjectNotFound = errors.New("object not found")

	// ErrConsumerNeedsCredentials is returned when an admin role is granted
	// to a consumer without email and password.
	ErrConsumerNeedsCredentials = errors.New("consumer needs credentials")

	ErrCanOnlyBeRevokedOnce = errors.New("can only be revoked once")
	ErrRevokeIsFinal        = errors.New("revoke is final")
	ErrNotRevocable         = errors.New("not revocable")

	// ErrInvalidDates is returned for activity dates that contradict each
	// other or the current time.
	ErrInvalidDates = errors.New("invalid dates")

	ErrNothingHasChanged = errors.New("nothing has changed")
	ErrInvalidJSON       = errors.New("invalid json")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names the field a sentinel error refers to. Bound carries the
// violated limit or the expected type when there is one.
type FieldError struct {
	Err   error
	Field string
	Bound any
}

func (e *FieldError) Error() string {
	if e.Bound != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Err, e.Field, e.Bound)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(err error, field string, bound any) *FieldError {
	return &FieldError{Err: err, Field: field, Bound: bound}
}

// NotFoundError reports which row of which table is missing.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s id %d", ErrObjectNotFound, e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// NotFound builds a NotFoundError.
func NotFound(table string, id int64) error {
	return &NotFoundError{Table: table, ID: id}
}

// Duplicate builds the error for a violated uniqueness constraint.
func Duplicate(field string) error {
	return fieldError(ErrDuplicateObject, field, nil)
}

// MissingReference builds the error for a dangling foreign key.
func MissingReference(field string) error {
	return fieldError(ErrForeignKeyNotExisting, field, nil)
}

// =============================================================================
// BOUNDARY MAPPING
// =============================================================================

// Info is the machine-readable description of an error.
type Info struct {
	Code    int      `json:"code"`
	Types   []string `json:"types"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
}

type kind struct {
	err   error
	code  int
	types []string
}

var kinds = []kind{
	{ErrFieldIsNone, http.StatusBadRequest, []string{"input", "field"}},
	{ErrForbiddenField, http.StatusBadRequest, []string{"input", "field"}},
	{ErrUnknownField, http.StatusBadRequest, []string{"input", "field"}},
	{ErrWrongType, http.StatusBadRequest, []string{"input", "field"}},
	{ErrMaxLengthExceeded, http.StatusBadRequest, []string{"input", "field", "length"}},
	{ErrMinLengthUndershot, http.StatusBadRequest, []string{"input", "field", "length"}},
	{ErrMaximumValueExceeded, http.StatusBadRequest, []string{"input", "field", "value"}},
	{ErrMinimumValueUndershot, http.StatusBadRequest, []string{"input", "field", "value"}},
	{ErrDuplicateObject, http.StatusConflict, []string{"input", "database", "duplicate"}},
	{ErrForeignKeyNotExisting, http.StatusBadRequest, []string{"input", "database", "reference"}},
	{ErrObjectNotFound, http.StatusNotFound, []string{"resource", "not_found"}},
	{ErrConsumerNeedsCredentials, http.StatusBadRequest, []string{"input", "credentials"}},
	{ErrCanOnlyBeRevokedOnce, http.StatusConflict, []string{"ledger", "revocation"}},
	{ErrRevokeIsFinal, http.StatusConflict, []string{"ledger", "revocation"}},
	{ErrNotRevocable, http.StatusConflict, []string{"ledger", "revocation"}},
	{ErrInvalidDates, http.StatusBadRequest, []string{"input", "dates"}},
	{ErrNothingHasChanged, http.StatusOK, []string{"input", "noop"}},
	{ErrInvalidJSON, http.StatusBadRequest, []string{"input", "json"}},
}

// Describe maps err onto its status code and category list. Errors that are
// not part of the taxonomy are treated as internal faults.
func Describe(err error) Info {
	for _, k := range kinds {
		if !errors.Is(err, k.err) {
			continue
		}
		info := Info{Code: k.code, Types: k.types, Message: err.Error()}
		var fe *FieldError
		if errors.As(err, &fe) {
			info.Field = fe.Field
		}
		return info
	}
	return Info{
		Code:    http.StatusInternalServerError,
		Types:   []string{"internal"},
		Message: "internal server error",
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	code := Describe(err).Code
	return code >= 400 && code < 500
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
