package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/service"
	"github.com/spec-kit/repair-service/internal/store"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// errorMappers translate package sentinels into API errors, most specific first.
var errorMappers = []apperrors.Mapper{
	mapServiceError,
	mapStoreError,
	mapAuthError,
	mapAttachmentError,
	mapFiberError,
}

func mapServiceError(err error) *apperrors.DomainError {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		details := make(map[string]any, len(verr.Fields))
		for field, rule := range verr.Fields {
			details[field] = rule
		}
		return apperrors.NewDomainError("VALIDATION_FAILED", "request has invalid fields", http.StatusBadRequest, details)
	}
	var terr *service.TransitionError
	if errors.As(err, &terr) {
		return apperrors.NewDomainError("ILLEGAL_TRANSITION", terr.Error(), http.StatusConflict, map[string]any{
			"from":    terr.From,
			"to":      terr.To,
			"allowed": service.NextStatuses(terr.From),
		})
	}
	switch {
	case errors.Is(err, service.ErrInvalidStatus):
		return apperrors.NewDomainError("INVALID_STATUS", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, service.ErrForbidden):
		return apperrors.NewDomainError("FORBIDDEN", "only admin or staff may change repair requests", http.StatusForbidden, nil)
	}
	return nil
}

func mapStoreError(err error) *apperrors.DomainError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewDomainError("NOT_FOUND", "repair request not found", http.StatusNotFound, nil)
	case errors.Is(err, store.ErrCreateFailed):
		return &apperrors.DomainError{
			Code:       "CREATE_FAILED",
			Message:    "could not submit the repair request, please try again",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	case errors.Is(err, store.ErrUnavailable):
		return &apperrors.DomainError{
			Code:       "STORE_UNAVAILABLE",
			Message:    "repair requests are temporarily unavailable",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	}
	return nil
}

func mapAuthError(err error) *apperrors.DomainError {
	var perr *auth.ProviderError
	if errors.As(err, &perr) {
		status := perr.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadRequest
		}
		return apperrors.NewDomainError("AUTH_REJECTED", perr.Message, status, nil)
	}
	switch {
	case errors.Is(err, auth.ErrInvalidIdentifier):
		return apperrors.NewDomainError("INVALID_IDENTIFIER", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperrors.NewDomainError("INVALID_CREDENTIALS", err.Error(), http.StatusUnauthorized, nil)
	case errors.Is(err, auth.ErrWeakPassword):
		return apperrors.NewDomainError("WEAK_PASSWORD", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, auth.ErrAccountExists):
		return apperrors.NewDomainError("CONFLICT", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, auth.ErrNotConfigured):
		return &apperrors.DomainError{Code: "AUTH_NOT_CONFIGURED", Message: err.Error(), HTTPStatus: http.StatusServiceUnavailable, Err: err}
	case errors.Is(err, auth.ErrProviderUnavailable):
		return &apperrors.DomainError{Code: "AUTH_UNAVAILABLE", Message: "identity provider unreachable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	return nil
}

func mapAttachmentError(err error) *apperrors.DomainError {
	switch {
	case errors.Is(err, service.ErrAttachmentTooLarge):
		return apperrors.NewDomainError("ATTACHMENT_TOO_LARGE", err.Error(), http.StatusRequestEntityTooLarge, nil)
	case errors.Is(err, service.ErrAttachmentEmpty):
		return apperrors.NewDomainError("VALIDATION_FAILED", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, service.ErrStorageUnavailable):
		return &apperrors.DomainError{Code: "UPLOAD_FAILED", Message: "could not upload the attachment, please try again", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	return nil
}

func mapFiberError(err error) *apperrors.DomainError {
	var ferr *fiber.Error
	if !errors.As(err, &ferr) {
		return nil
	}
	code := "HTTP_ERROR"
	switch ferr.Code {
	case fiber.StatusNotFound:
		code = "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		code = "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		code = "PAYLOAD_TOO_LARGE"
	case fiber.StatusBadRequest:
		code = "BAD_REQUEST"
	}
	return apperrors.NewDomainError(code, ferr.Message, ferr.Code, nil)
}
