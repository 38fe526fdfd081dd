package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:      "healthy",
		Version:     version.Version,
		Time:        time.Now().UTC().Format(time.RFC3339),
		Running:     s.feed.Running(),
		Subscribers: s.feed.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Error encoding health response", "error", err)
	}
}

// detectionsHandler returns the detection log. The format query parameter
// selects json (default), text, csv or yaml.
func (s *Server) detectionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	detections := s.feed.Snapshot()
	format := r.URL.Query().Get("format")

	switch format {
	case "", scanner.FormatJSON:
		response := DetectionsResponse{Count: len(detections), Detections: detections}
		if sum, ok := s.feed.Summary(); ok {
			response.Summary = &sum
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			s.logger.Error("Error encoding detections response", "error", err)
		}
	case scanner.FormatText, scanner.FormatCSV, scanner.FormatYAML:
		w.Header().Set("Content-Type", contentTypes[format])
		if err := scanner.WriteReport(w, detections, format); err != nil {
			s.logger.Error("Error writing detections report", "format", format, "error", err)
		}
	default:
		http.Error(w, scanner.ValidateReportFormat(format).Error(), http.StatusBadRequest)
	}
}

var contentTypes = map[string]string{
	scanner.FormatText: "text/plain; charset=utf-8",
	scanner.FormatCSV:  "text/csv",
	scanner.FormatYAML: "application/yaml",
}
