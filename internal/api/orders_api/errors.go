package orders_api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/pkg/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errBadRequest = errors.New("bad request")

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{models.ErrRoleNotPermitted, http.StatusForbidden, "role_not_permitted"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrOrderClosed, http.StatusConflict, "order_closed"},
	{models.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{models.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{models.ErrInvalidStage, http.StatusUnprocessableEntity, "invalid_stage"},
	{models.ErrInvalidEvidence, http.StatusBadRequest, "invalid_evidence"},
	{models.ErrInvalidOrder, http.StatusBadRequest, "invalid_order"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeErrorCode(w, e.status, e.code, err.Error())
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errBadRequest, "invalid json: "+err.Error())
	}
	return nil
}
