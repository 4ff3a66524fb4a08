package querybuild

import (
	"errors"
	"fmt"
)

// BuildError reports why a query could not be built. No query text exists
// when a BuildError is returned.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Entity names the entity kind involved, when there is one.
	Entity string
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeMissingIdentifier indicates the record has no analysisId.
	ErrCodeMissingIdentifier BuildErrorCode = "MISSING_IDENTIFIER"

	// ErrCodeUnknownEntity indicates an entity kind the ontology does not define.
	ErrCodeUnknownEntity BuildErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeInvalidQuery indicates a built query failed structural validation
	// or could not be rendered.
	ErrCodeInvalidQuery BuildErrorCode = "INVALID_QUERY"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsMissingIdentifier returns true if err is a missing identifier error.
func IsMissingIdentifier(err error) bool { return hasCode(err, ErrCodeMissingIdentifier) }

// IsUnknownEntity returns true if err is an unknown entity error.
func IsUnknownEntity(err error) bool { return hasCode(err, ErrCodeUnknownEntity) }

// IsInvalidQuery returns true if err is an invalid query error.
func IsInvalidQuery(err error) bool { return hasCode(err, ErrCodeInvalidQuery) }
