package shop

// AssertMandatory fails with ErrFieldIsNone for the first field of names
// that is not set on r.
func AssertMandatory(r Record, names ...string) error {
	for _, name := range names {
		if !r.IsSet(name) {
			return fieldError(ErrFieldIsNone, name, nil)
		}
	}
	return nil
}

// AssertForbidden fails with ErrForbiddenField for the first field of names
// that is set on r. Used to reject ids, timestamps and server-computed
// values in client input.
func AssertForbidden(r Record, names ...string) error {
	for _, name := range names {
		if r.IsSet(name) {
			return fieldError(ErrForbiddenField, name, nil)
		}
	}
	return nil
}

// AssertAllowed fails with ErrForbiddenField for the first set field that
// is not in allowed.
func AssertAllowed(r Record, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		ok[name] = true
	}
	for _, name := range r.Fields() {
		if !ok[name] {
			return fieldError(ErrForbiddenField, name, nil)
		}
	}
	return nil
}
