package sdk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/celerix-dev/celerix-sensors/pkg/allocation"
)

// Error codes carried on the wire after "ERR".
const (
	CodeInsufficientSensors   = string(allocation.CodeInsufficientSensors)
	CodeUserIsNotParticipant  = string(allocation.CodeUserIsNotParticipant)
	CodeWorkoutNotFound       = "WORKOUT_NOT_FOUND"
	CodeSensorNotFound        = "SENSOR_NOT_FOUND"
	CodeSensorAlreadyDisabled = "SENSOR_ALREADY_DISABLED"
	CodeBadRequest            = "BAD_REQUEST"
	CodeInternal              = "INTERNAL"
)

// ErrBadRequest is returned for malformed commands.
var ErrBadRequest = errors.New("bad request")

// ValidateID rejects ids that cannot travel as a single protocol token:
// empty ones and ones containing whitespace or control characters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrBadRequest)
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: invalid id %q", ErrBadRequest, id)
	}
	return nil
}

// ErrorCode maps err to its wire code.
func ErrorCode(err error) string {
	if code, ok := allocation.CodeOf(err); ok {
		return string(code)
	}
	switch {
	case errors.Is(err, ErrWorkoutNotFound):
		return CodeWorkoutNotFound
	case errors.Is(err, ErrSensorNotFound):
		return CodeSensorNotFound
	case errors.Is(err, ErrSensorAlreadyDisabled):
		return CodeSensorAlreadyDisabled
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	}
	return CodeInternal
}

// FormatError renders err as "<CODE> <message>".
func FormatError(err error) string {
	return ErrorCode(err) + " " + err.Error()
}

// ParseError turns "<CODE> <message>" back into an error matching the sentinels.
func ParseError(s string) error {
	code, msg, _ := strings.Cut(strings.TrimSpace(s), " ")
	switch code {
	case CodeInsufficientSensors:
		return &allocation.Error{Code: allocation.CodeInsufficientSensors, Message: msg}
	case CodeUserIsNotParticipant:
		return &allocation.Error{Code: allocation.CodeUserIsNotParticipant, Message: msg}
	case CodeWorkoutNotFound:
		return ErrWorkoutNotFound
	case CodeSensorNotFound:
		return ErrSensorNotFound
	case CodeSensorAlreadyDisabled:
		return ErrSensorAlreadyDisabled
	case CodeBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, strings.TrimPrefix(msg, ErrBadRequest.Error()+": "))
	case CodeInternal:
		return errors.New(msg)
	}
	return errors.New(strings.TrimSpace(s))
}
