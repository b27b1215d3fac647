package hook

import (
	"errors"
	"fmt"
)

// ErrRegistrySealed is returned when registering after the listening session has started.
var ErrRegistrySealed = errors.New("hook registry is sealed")

// DuplicateHookError reports a second registration of an existing identifier.
type DuplicateHookError struct {
	ID string
}

func (e *DuplicateHookError) Error() string {
	return fmt.Sprintf("hook %q is already registered", e.ID)
}

// InvalidSchemaError reports a malformed parameter schema.
type InvalidSchemaError struct {
	HookID string
	Param  string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("hook %q: invalid schema: %s", e.HookID, e.Reason)
	}
	return fmt.Sprintf("hook %q: invalid schema for parameter %q: %s", e.HookID, e.Param, e.Reason)
}

// InvalidHookError reports an invalid identifier or missing hook field.
type InvalidHookError struct {
	ID     string
	Reason string
}

func (e *InvalidHookError) Error() string {
	return fmt.Sprintf("hook %q: %s", e.ID, e.Reason)
}
