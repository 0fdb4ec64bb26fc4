package data

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeConflict = errors.New("employee modified concurrently")
	ErrMutationDisabled = errors.New("mutation disabled")
)

// UpdateResult is the outcome of an update that didn't fail for reasons
// unrelated to the employee's existence.
type UpdateResult int

const (
	UpdateResultUpdated UpdateResult = iota
	UpdateResultNotFound
	UpdateResultConflict
)

func (u UpdateResult) String() string {
	switch u {
	default:
		return "unknown"
	case UpdateResultUpdated:
		return "updated"
	case UpdateResultNotFound:
		return "not_found"
	case UpdateResultConflict:
		return "conflict"
	}
}

// Err converts a result that isn't UpdateResultUpdated into its sentinel.
func (u UpdateResult) Err() error {
	switch u {
	default:
		return nil
	case UpdateResultNotFound:
		return ErrEmployeeNotFound
	case UpdateResultConflict:
		return ErrEmployeeConflict
	}
}

// ValidationError maps field names (as they appear in forms and json) to
// human readable messages.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = message
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s %s", field, v.Fields[field]))
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
