package translator

import (
	"errors"
	"fmt"
)

var (
	// ErrStrategyNotFound is returned when a requested strategy is not registered.
	ErrStrategyNotFound = errors.New("translation strategy not found")
	// ErrStrategyExists is returned when registering a name that is already taken.
	ErrStrategyExists = errors.New("translation strategy already registered")
	// ErrInvalidStrategy is returned when registering a nil strategy or an empty name.
	ErrInvalidStrategy = errors.New("invalid translation strategy")
	// ErrNoDefaultStrategy is returned when no name was given and no default is set.
	ErrNoDefaultStrategy = errors.New("no default translation strategy")
)

// StrategyNotFoundError names the strategy that could not be resolved.
type StrategyNotFoundError struct {
	Name string
}

func (e *StrategyNotFoundError) Error() string {
	if e.Name == "" {
		return ErrNoDefaultStrategy.Error()
	}
	return fmt.Sprintf("%s: %q", ErrStrategyNotFound, e.Name)
}

// Is matches both ErrStrategyNotFound and, for the empty name, ErrNoDefaultStrategy.
func (e *StrategyNotFoundError) Is(target error) bool {
	if target == ErrStrategyNotFound {
		return true
	}
	return e.Name == "" && target == ErrNoDefaultStrategy
}

// ProviderError describes a transient provider failure that an adapter
// absorbed by returning the original text.
type ProviderError struct {
	Strategy   string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("strategy %s: provider call failed", e.Strategy)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsFallback reports whether err signals a fail-soft fallback to the source text.
func IsFallback(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
