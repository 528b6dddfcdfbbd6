package service

import (
	"context"
	"errors"

	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

// storageFailure converts untyped repository errors into StorageUnavailable.
// Typed errors and context cancellation pass through unchanged.
func storageFailure(err error, message string) error {
	if err == nil {
		return nil
	}
	if isContextError(err) {
		return err
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
