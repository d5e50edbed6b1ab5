package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/middleware"
	"github.com/octobees/contact-enricher/internal/service"
)

// APIResponse describes the standard envelope returned by the API.
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	payload := APIResponse{
		Status:    "success",
		Message:   message,
		Data:      data,
		RequestID: middleware.RequestIDFromContext(c),
	}
	return c.JSON(status, payload)
}

// Error sends an error response using the shared envelope format.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload := APIResponse{
		Status:    "error",
		Message:   message,
		RequestID: middleware.RequestIDFromContext(c),
	}
	return c.JSON(status, payload)
}

// serviceError maps caller mistakes to 400 and hides everything else behind fallback.
func serviceError(c echo.Context, err error, fallback string) error {
	var validationErr service.ValidationError
	if errors.As(err, &validationErr) {
		return Error(c, http.StatusBadRequest, validationErr.Error())
	}
	var csvErr service.CSVValidationError
	if errors.As(err, &csvErr) {
		return Error(c, http.StatusBadRequest, csvErr.Error())
	}
	logrus.WithError(err).WithField("request_id", middleware.RequestIDFromContext(c)).Error(fallback)
	return Error(c, http.StatusInternalServerError, fallback)
}
