package service

import (
	"errors"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
)

// asAppError leaves typed errors untouched and marks everything else internal.
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(err)
}
