// Package server wires HTTP handlers into a ServeMux for the chat gateway.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all gateway
// routes: health check, WebSocket endpoint, and test page.
func SetupRoutes(cs *ChatServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(cs))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
