package server

import (
	"encoding/json"
	"net/http"

	"github.com/zsiec/cloudstream/pkg/version"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if err := json.NewEncoder(w).Encode(version.GetInfo()); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
	}
}
