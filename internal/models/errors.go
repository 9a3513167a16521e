package models

import "github.com/pkg/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrEmptySignature    = errors.New("delivery signature is empty")
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrUserNotFound      = errors.New("user not found")
	ErrTemplateNotFound  = errors.New("notification template not found")

	// ErrInvalidActor: актор не указан там, где он обязателен (доставка), или такого пользователя нет.
	ErrInvalidActor = errors.New("invalid actor")
)

// ErrUnknownStatus is also an ErrInvalidTransition.
var ErrUnknownStatus = unknownStatusError{}

type unknownStatusError struct{}

func (unknownStatusError) Error() string { return "unknown order status" }

func (unknownStatusError) Is(target error) bool {
	return target == ErrInvalidTransition
}
