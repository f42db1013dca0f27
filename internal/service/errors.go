// Package service holds helpers shared by the domain services below it.
package service

import (
	"errors"

	"github.com/jwalitptl/onboarding-api/internal/repository"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

// StoreError maps a repository error onto the API error taxonomy. Errors that are
// already typed pass through unchanged.
func StoreError(resource string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict(resource+" already exists", err)
	default:
		return apperrors.Internal(err)
	}
}
