package sti

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	// ErrUnresolvedType is returned when a discriminator names a type that is
	// not registered or is not related to the requesting type.
	ErrUnresolvedType = errors.New("unresolved type")

	// ErrMethodNotFound is returned by CastOverrides for a behavior no type in
	// the hierarchy declares.
	ErrMethodNotFound = errors.New("method not found")

	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("type already registered")

	// ErrUnknownParent is returned when a type names an unregistered parent.
	ErrUnknownParent = errors.New("unknown parent type")

	// ErrRootAlreadySet is returned when a second parentless type is registered.
	ErrRootAlreadySet = errors.New("contract root already registered")

	// ErrInvalidType is returned for malformed type definitions.
	ErrInvalidType = errors.New("invalid type definition")
)

// ResolutionError describes a discriminator that could not be resolved to a
// usable type.
type ResolutionError struct {
	Name   string // discriminator value
	Base   string // type the resolution was attempted from
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Base == "" {
		return fmt.Sprintf("cannot resolve type %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("cannot resolve type %q from %q: %s", e.Name, e.Base, e.Reason)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrUnresolvedType
}

// MethodError reports a behavior name unknown to a type and its ancestors.
type MethodError struct {
	Type   string
	Method string
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("type %q has no method %q", e.Type, e.Method)
}

func (e *MethodError) Is(target error) bool {
	return target == ErrMethodNotFound
}

// IsUnresolved reports whether err is a resolution failure.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolvedType)
}

// IsMethodNotFound reports whether err is a missing-method failure.
func IsMethodNotFound(err error) bool {
	return errors.Is(err, ErrMethodNotFound)
}
