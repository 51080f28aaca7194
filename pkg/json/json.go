package json

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/xilidan/meetings/pkg/errors"
)

const maxBodyBytes = 1 << 20

type ErrorBody struct {
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func ParseJSON(r *http.Request, model any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("missing request body: %w", errors.ErrValidation)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(model); err != nil {
		return fmt.Errorf("failed to decode request body: %v: %w", err, errors.ErrValidation)
	}

	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error kind to the HTTP status returned at the boundary.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindInvalidState:
		return http.StatusConflict
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindTranscription, errors.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the {"error": {"kind", "message"}} envelope. Internal
// errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	msg := err.Error()
	if kind == errors.KindInternal {
		msg = "internal error"
	}

	WriteJSON(w, StatusFor(kind), ErrorResponse{Error: ErrorBody{Kind: kind, Message: msg}})
}
