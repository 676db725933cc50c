package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/pipeline"
	"github.com/address-resolver/internal/queue"
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, responses.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: c.GetString(RequestIDKey),
	})
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request: "+err.Error())
}

// fail maps service errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	var perr *pipeline.Error
	switch {
	case pipeline.IsInvalidInput(err):
		abort(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, models.ErrInvalidRecord):
		abort(c, http.StatusBadRequest, "INVALID_RECORD", err.Error())
	case errors.Is(err, queue.ErrJobNotFound):
		abort(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrJobNotFinished):
		abort(c, http.StatusConflict, "JOB_NOT_FINISHED", err.Error())
	case errors.Is(err, services.ErrNoStore),
		errors.Is(err, services.ErrSearchDisabled),
		errors.Is(err, pipeline.ErrNoClusterer):
		abort(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	case errors.As(err, &perr):
		abort(c, http.StatusInternalServerError, string(perr.Kind), err.Error())
	default:
		abort(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
