package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the API envelope. The HTTP status mirrors the envelope status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a 400 with validation details.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// CachedResponse writes a pre-serialized envelope.
func CachedResponse(c echo.Context, body []byte) error {
	return c.JSONBlob(http.StatusOK, body)
}

// AppErrorResponse writes err as an envelope with its mapped status.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := FromDomainError(err)
	if appErr.Status >= http.StatusInternalServerError {
		// Internal details stay in the logs.
		return DataResponse(c, appErr.Status, []*AppError{{Code: appErr.Code, Message: appErr.Message}})
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// IsClientError reports whether err maps to a 4xx.
func IsClientError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = FromDomainError(err)
	}
	return appErr.Status >= 400 && appErr.Status < 500
}
