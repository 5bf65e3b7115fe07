package app

import (
	"errors"
	"net/http"

	httpxmiddleware "upload-server-go/internal/httpx/middleware"
)

// Router builds the full HTTP routing tree.
func (a *ServerApp) Router() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("server app is nil")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", a.FileHandler.Upload)
	mux.HandleFunc("GET /health", a.FileHandler.Health)
	mux.HandleFunc("GET /ws/upload", a.WSHandler.Handle)

	return httpxmiddleware.RequestLogger(mux), nil
}
