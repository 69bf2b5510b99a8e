// Package allocation decides which participant of a workout gets which sensor.
//
// Every function in this package is pure: it reads the snapshots it is given,
// never performs I/O and never reads the clock. Callers persist the result.
package allocation

import (
	"errors"
	"fmt"
)

// Code tags an engine failure independently of any transport.
type Code string

const (
	// CodeInsufficientSensors means there are not enough eligible sensors.
	CodeInsufficientSensors Code = "INSUFFICIENT_SENSORS"
	// CodeUserIsNotParticipant means the user has no allocation in the workout.
	CodeUserIsNotParticipant Code = "USER_IS_NOT_PARTICIPANT"
)

// Error is a tagged engine failure. It is always raised before any write.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors carrying the same code, so errors.Is works against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrInsufficientSensors is returned when the eligible sensors cannot cover the request.
	ErrInsufficientSensors = &Error{Code: CodeInsufficientSensors, Message: "Not enough sensors"}
	// ErrUserIsNotParticipant is returned when reassigning a user absent from the workout.
	ErrUserIsNotParticipant = &Error{Code: CodeUserIsNotParticipant, Message: "User does not participate in this workout"}
)

func insufficient(format string, args ...any) error {
	return &Error{
		Code:    CodeInsufficientSensors,
		Message: ErrInsufficientSensors.Message + ": " + fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the engine code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
