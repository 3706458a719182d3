// Package respond writes the admin API's JSON envelopes.
//
//	success: {"data": ...}
//	failure: {"error": {"code": "...", "message": "...", "details": ...}}
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/reqid"
	"go.uber.org/zap"
)

type successEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of a failure envelope.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, successEnvelope{Data: data})
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, successEnvelope{Data: data})
}

// Error writes err as a failure envelope. Uncoded errors are reported as
// internal errors; their text never reaches the client.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := apierr.As(err)
	if typed == nil {
		// Plain errors are classified by message; the text itself stays
		// in the log and the client gets the code's public message.
		typed = apierr.Wrap(apierr.FromMessage(err.Error()).Code(), err, "")
	}
	meta := apierr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if meta.ShowMessage && typed.Message() != "" {
		msg = typed.Message()
	}
	body := APIError{
		Code:      string(typed.Code()),
		Message:   msg,
		RequestID: reqid.From(r.Context()),
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	if log != nil {
		fields := []zap.Field{
			zap.String("code", string(typed.Code())),
			zap.Int("status", meta.HTTPStatus),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", body.RequestID),
			zap.Error(err),
		}
		if meta.HTTPStatus >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
		} else {
			log.Info("request rejected", fields...)
		}
	}

	JSON(w, meta.HTTPStatus, errorEnvelope{Error: body})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Recoverer turns a panic in a handler into an INTERNAL_ERROR envelope.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					Error(w, r, log, apierr.Wrap(apierr.CodeInternal, fmt.Errorf("panic: %v", rec), "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
