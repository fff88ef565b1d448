package domain

import "errors"

var (
	// ErrNotFound is the parent of every lookup miss; match it with errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrParticipantNotFound is returned when an identity key has no participant yet.
	ErrParticipantNotFound = notFound("participant not found")
	// ErrLevelNotFound indicates a level reference that no longer resolves.
	ErrLevelNotFound = notFound("level not found")
	// ErrQuestionNotFound indicates a question reference that no longer resolves.
	ErrQuestionNotFound = notFound("question not found")
	// ErrNoLevels is returned when the catalog has no levels at all.
	ErrNoLevels = notFound("no levels available")

	// ErrConstraintViolation wraps unique-key violations reported by the store.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrMalformedSnapshot indicates a persisted snapshot that fails validation.
	ErrMalformedSnapshot = errors.New("malformed state snapshot")
	// ErrNestedUnitOfWork is returned when a unit of work is opened inside another one.
	ErrNestedUnitOfWork = errors.New("nested unit of work")
	// ErrInvalidEvent indicates an event that cannot be built or decoded.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrLevelLoop is returned when advancing visits more levels than exist.
	ErrLevelLoop = errors.New("level sequence did not terminate")
)

type notFoundError struct {
	msg string
}

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
