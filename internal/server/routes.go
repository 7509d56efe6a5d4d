package server

import "net/http"

// Routes returns the relay's HTTP surface: the health check on / and the
// websocket endpoint on /ws.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}
