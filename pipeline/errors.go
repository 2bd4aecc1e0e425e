package pipeline

import (
	"errors"
	"net/http"

	"plugin-pipeline/orm"

	"github.com/gin-gonic/gin"
)

// Machine-readable error codes carried in every error response body.
const (
	CodeBadSignature        = "BAD_SIGNATURE"
	CodeMalformedPayload    = "MALFORMED_PAYLOAD"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeBadInput            = "BAD_INPUT"
	CodeInternal            = "INTERNAL"
	CodePluginNotFound      = "PLUGIN_NOT_FOUND"
	CodeNoVersion           = "NO_VERSION"
	CodeBuilding            = "BUILDING"
	CodeBuildFailed         = "BUILD_FAILED"
	CodeDownloadUnavailable = "DOWNLOAD_UNAVAILABLE"
)

// ServiceError represents public-facing errors from the pipeline. The inner
// error stays in server logs; clients see only status, code and message.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Inner   error

	// Fields are extra response body entries, e.g. the buildId a polling
	// client needs.
	Fields gin.H
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Inner
}

// body renders the client-facing response body.
func (e *ServiceError) body() gin.H {
	body := gin.H{
		"code":    e.Code,
		"message": e.Message,
	}
	for k, v := range e.Fields {
		body[k] = v
	}

	return body
}

// respondError writes a ServiceError (or a wrapped substitute) to the client.
func respondError(c *gin.Context, err error) {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = wrapServiceError(err, "handling request")
	}

	c.JSON(svcErr.Status, svcErr.body())
}

// wrapServiceError converts internal errors to user-friendly service errors
func wrapServiceError(err error, operation string) *ServiceError {
	if err == nil {
		return nil
	}

	var notFoundErr *orm.NotFoundError
	if errors.As(err, &notFoundErr) {
		return &ServiceError{
			Status:  http.StatusNotFound,
			Code:    CodeNotFound,
			Message: "Record not found for " + operation,
			Inner:   err,
		}
	}

	var conflictErr *orm.ConflictError
	if errors.As(err, &conflictErr) {
		return &ServiceError{
			Status:  http.StatusConflict,
			Code:    CodeConflict,
			Message: "Conflicting state for " + operation,
			Inner:   err,
		}
	}

	var badInputErr *orm.BadInputError
	if errors.As(err, &badInputErr) {
		return &ServiceError{
			Status:  http.StatusBadRequest,
			Code:    CodeBadInput,
			Message: "Invalid input for " + operation,
			Inner:   err,
		}
	}

	// Handle generic errors
	return &ServiceError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "Internal server error during " + operation,
		Inner:   err,
	}
}
