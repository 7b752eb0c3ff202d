package handlers

import (
	"net/http"

	"github.com/kestrel-sec/authgate/internal/httpx"
	"github.com/kestrel-sec/authgate/internal/version"
)

func Version(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, version.Get())
}
