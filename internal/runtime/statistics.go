package runtime

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/drblury/protowamp/internal/runtime/counters"
	"github.com/drblury/protowamp/internal/runtime/jsoncodec"
)

// StartStatisticsServer registers /api/statistics when the statistics API is
// enabled.
func (s *Service) StartStatisticsServer() {
	if !s.Conf.StatsUIEnabled {
		return
	}
	s.RegisterHTTPHandler(s.Conf.StatsUIPort, "/api/statistics", http.HandlerFunc(s.handleGetStatistics))
}

// handleGetStatistics serves the router tree, or one session tree with
// ?session=<id>. ?format=text selects the line dump instead of JSON.
func (s *Service) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	if allowed := s.getAllowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	tree := s.stats
	if raw := r.URL.Query().Get("session"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		hs, ok := s.Session(id)
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		tree = hs.Statistics()
	}

	if r.URL.Query().Get("format") == "text" {
		s.writeStatisticsText(w, tree)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := jsoncodec.Encode(w, tree.Snapshot()); err != nil {
		s.Logger.Error("Failed to encode statistics", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Service) writeStatisticsText(w http.ResponseWriter, tree *counters.Tree) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := tree.Dump(w); err != nil {
		s.Logger.Error("Failed to dump statistics", err, nil)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range s.Conf.StatsUICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
