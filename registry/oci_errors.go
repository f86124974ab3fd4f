package registry

import (
	"errors"
	"fmt"

	"github.com/aldnoah/modkit/registry/oras"
)

// mapOCIError translates low-level ORAS errors to registry sentinels.
func mapOCIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		return err
	}
	if errors.Is(err, oras.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, oras.ErrUnauthorized) || errors.Is(err, oras.ErrForbidden) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if errors.Is(err, oras.ErrInvalidReference) {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return err
}
