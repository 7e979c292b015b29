package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/exposurerisk/pkg/metrics"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		metrics.RecordErrorByComponent("http", "encode_error")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal", Message: ErrInternal.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Code: code, Message: message(status, err)})
}

// message hides the op tag of a KindError from clients.
func message(status int, err error) string {
	var ke *KindError
	switch {
	case err == nil:
		return http.StatusText(status)
	case errors.As(err, &ke) && ke.Err != nil:
		return ke.Err.Error()
	case errors.As(err, &ke):
		return ke.Kind.Error()
	default:
		return err.Error()
	}
}
