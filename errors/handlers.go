package errors

import (
	"net/http"

	"go.uber.org/zap"
)

// LogError logs an error with its context. 5xx errors are logged at error
// level, client errors at warn.
func LogError(logger *zap.Logger, err error, requestID string) {
	var herr *HuulkitError
	if As(err, &herr) {
		fields := []zap.Field{
			zap.String("error_type", string(herr.Type)),
			zap.String("message", herr.Message),
			zap.Int("code", herr.Code),
			zap.String("request_id", requestID),
		}
		if herr.err != nil {
			fields = append(fields, zap.NamedError("cause", herr.err))
		}
		if len(herr.Details) > 0 {
			fields = append(fields, zap.Any("details", herr.Details))
		}
		if herr.Code >= http.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request error", fields...)
		}
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
