package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and version
	mux.HandleFunc("/ping", s.app.APIHandler.PingHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Jobs API. The remote pipeline client speaks to these routes.
	mux.HandleFunc("/api/jobs", s.handleJobsCollection)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Document store API
	mux.HandleFunc("/api/libraries", s.app.DocumentsHandler.ListLibrariesHandler)
	mux.HandleFunc("/api/libraries/", s.handleLibraryRoutes)
	mux.HandleFunc("/api/search", s.app.DocumentsHandler.SearchHandler)

	// JSON 404 for everything else under /api/
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsCollection routes /api/jobs: GET lists, POST enqueues.
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.JobsHandler.ListJobsHandler,
		s.app.JobsHandler.EnqueueJobHandler)
}

// handleJobRoutes routes job-related requests to the appropriate handler
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if r.Method == "POST" {
		// POST /api/jobs/clear-completed
		if path == "/api/jobs/clear-completed" {
			s.app.JobsHandler.ClearCompletedJobsHandler(w, r)
			return
		}

		// POST /api/jobs/{id}/cancel
		if strings.HasSuffix(path, "/cancel") {
			s.app.JobsHandler.CancelJobHandler(w, r)
			return
		}

		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == "GET" {
		s.app.JobsHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleLibraryRoutes routes /api/libraries/{library}/versions/{version}
func (s *Server) handleLibraryRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method == "DELETE" {
		s.app.DocumentsHandler.RemoveVersionHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
