package routing

import (
	"errors"
	"fmt"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoRouteConfigured is returned when classification picks a router
	// slot that has no logical model configured.
	ErrNoRouteConfigured = errors.New("no route configured")

	// ErrUnknownModel is returned when a logical model has no entry in the
	// models table.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoProvidersForModel is returned when a logical model exists but
	// its mapping list is empty.
	ErrNoProvidersForModel = errors.New("no providers for model")
)

// NoRouteConfiguredError is returned when a request classifies into a
// category whose router slot is unset.
type NoRouteConfiguredError struct {
	// Kind is the category the request classified into.
	Kind Kind
}

// Error implements the error interface.
func (e *NoRouteConfiguredError) Error() string {
	return fmt.Sprintf("no logical model configured for the %q route", e.Kind)
}

// Is implements error matching for errors.Is().
func (e *NoRouteConfiguredError) Is(target error) bool {
	return target == ErrNoRouteConfigured
}

// UnknownModelError is returned when a logical model is absent from the
// models table.
type UnknownModelError struct {
	// Model is the logical model that could not be resolved.
	Model string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q is not configured", e.Model)
}

// Is implements error matching for errors.Is().
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

// NoProvidersForModelError is returned when a logical model resolves to an
// empty mapping list.
type NoProvidersForModelError struct {
	// Model is the logical model with no provider mappings.
	Model string
}

// Error implements the error interface.
func (e *NoProvidersForModelError) Error() string {
	return fmt.Sprintf("model %q has no provider mappings", e.Model)
}

// Is implements error matching for errors.Is().
func (e *NoProvidersForModelError) Is(target error) bool {
	return target == ErrNoProvidersForModel
}
