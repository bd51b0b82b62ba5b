package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/lawnchairsociety/combatroller/internal/logger"
)

//go:embed static/index.html
var staticFS embed.FS

var indexTemplate = template.Must(template.ParseFS(staticFS, "static/index.html"))

type indexData struct {
	Title            string
	AdvantageDice    int
	DisadvantageDice int
	MaxMessageSize   int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	opts := s.config.Rolls.AttackOptions()
	data := indexData{
		Title:            "Combat Roller",
		AdvantageDice:    opts.AdvantageDice,
		DisadvantageDice: opts.DisadvantageDice,
		MaxMessageSize:   s.config.WebSocket.MaxMessageSize,
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		logger.Error("Failed to render index page", "error", err)
	}
}
