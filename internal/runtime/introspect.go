package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// StartDebugServer exposes the introspection API on the configured debug
// port: registered routes with their stats, plugins, hook counts and the
// redacted configuration.
func (s *Server) StartDebugServer() {
	if !s.Conf.DebugEnabled {
		return
	}

	port := s.Conf.DebugPort
	if port == 0 {
		port = 8081
	}

	s.RegisterHTTPHandler(port, "/api/routes", http.HandlerFunc(s.handleGetRoutes))
	s.RegisterHTTPHandler(port, "/api/plugins", http.HandlerFunc(s.handleGetPlugins))
	s.RegisterHTTPHandler(port, "/api/hooks", http.HandlerFunc(s.handleGetHooks))
	s.RegisterHTTPHandler(port, "/api/config", http.HandlerFunc(s.handleGetConfig))
	s.RegisterHTTPHandler(port, "/api/resources", http.HandlerFunc(s.handleGetResources))
}

// DebugHandler returns the introspection API as a plain http.Handler, for
// embedders that want to mount it on their own listener instead of the
// debug port.
func (s *Server) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/routes", s.handleGetRoutes)
	mux.HandleFunc("/api/plugins", s.handleGetPlugins)
	mux.HandleFunc("/api/hooks", s.handleGetHooks)
	mux.HandleFunc("/api/config", s.handleGetConfig)
	mux.HandleFunc("/api/resources", s.handleGetResources)
	return mux
}

func (s *Server) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	infos := make([]RouteInfo, 0, len(s.routes))
	for _, route := range s.routes {
		infos = append(infos, RouteInfo{
			Method:  route.Method,
			Pattern: route.Pattern(),
			Stats:   route.stats,
		})
	}
	s.writeDebugResponse(w, r, infos)
}

func (s *Server) handleGetPlugins(w http.ResponseWriter, r *http.Request) {
	s.writeDebugResponse(w, r, s.plugins.List())
}

func (s *Server) handleGetHooks(w http.ResponseWriter, r *http.Request) {
	s.writeDebugResponse(w, r, s.root.hooks.Counts())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeDebugResponse(w, r, s.Conf.Redacted())
}

func (s *Server) handleGetResources(w http.ResponseWriter, r *http.Request) {
	s.writeDebugResponse(w, r, s.ResourceUsage())
}

func (s *Server) writeDebugResponse(w http.ResponseWriter, r *http.Request, payload any) {
	w.Header().Set("Content-Type", "application/json")

	// Set CORS headers based on configuration
	if s.Conf != nil && len(s.Conf.DebugCORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := s.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, payload); err != nil {
		s.Logger.Error("Failed to encode debug response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns
// the appropriate Access-Control-Allow-Origin value.
func (s *Server) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.DebugCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
