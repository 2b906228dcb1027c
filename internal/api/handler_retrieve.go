package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fathomsearch/fathom/internal/orchestrator"
)

// HandleRetrieve serves POST /api/v1/retrieve. The request body is an
// orchestrator.Query; the response is the fused evidence plus per-lane
// outcomes. Lane failures never surface as HTTP errors; the response is
// structurally complete even when every lane failed.
func HandleRetrieve(orch *orchestrator.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q orchestrator.Query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
				return
			}
			WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body: "+err.Error())
			return
		}

		resp, err := orch.Retrieve(r.Context(), q)
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, resp)
		case errors.Is(err, orchestrator.ErrInvalidQuery):
			WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		case errors.Is(err, r.Context().Err()):
			// Client went away; nothing useful to write.
		default:
			log.Printf("[api] retrieve failed: %v", err)
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		}
	})
}
