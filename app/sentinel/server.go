package sentinel

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/utils"
)

// NewRouter returns the status API routes.
func (a *App) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.Ready() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})).Methods("GET")
	r.HandleFunc("/bridges", a.HandleBridges).Methods("GET")
	r.HandleFunc("/bridges/{prefix}", a.HandleBridge).Methods("GET")

	return r
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3003")
	a.Server = &http.Server{Addr: addr, Handler: a.NewRouter()}
	a.Logger.Info("Starting server", zap.String("addr", addr))
}

// HandleBridges lists every bridge status.
func (a *App) HandleBridges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":   a.Ready(),
		"bridges": a.Statuses(),
	})
}

// HandleBridge returns one bridge status by EVM chain prefix.
func (a *App) HandleBridge(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	s, ok := a.Status.Load(prefix)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown bridge "+prefix)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
