package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/kestrel-sec/authgate/internal/apperr"
)

type APIError struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, APIError{Error: msg})
}

// WriteAppError maps a taxonomy error to its status. The message is the
// caller's, not the error's: upstream detail never leaks to the requester.
func WriteAppError(w http.ResponseWriter, err error, msg string) {
	WriteError(w, apperr.HTTPStatus(err), msg)
}

func SafeErrMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
