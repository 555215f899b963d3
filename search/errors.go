package search

import "errors"

var (
	// ErrWidgetNotFound is returned when the widget id does not resolve
	ErrWidgetNotFound = errors.New("widget not found")
	// ErrInvalidInput is returned for filter values that cannot be parsed or
	// are out of range
	ErrInvalidInput = errors.New("invalid input")
)
