// Package server wires HTTP handlers into a ServeMux for the chat server via
// routing helpers.
package server

import "net/http"

// routes configures the ServeMux for the health check, the WebSocket
// endpoint and the test page.
func (s *ChatServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
