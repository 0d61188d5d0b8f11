package service

import (
	"errors"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

var errAlreadyRenewed = appErrors.Clone(appErrors.ErrConflict, "pass already has an open or approved renewal")

// storageFailure maps a repository error to StorageUnavailable when the gateway timed out or
// failed, and to an internal error otherwise.
func storageFailure(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
