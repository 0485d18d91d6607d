package web

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/document"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

type pageData struct {
	Skills    []skill.Skill
	Providers []config.ProviderInfo
	Accept    string
	View      sessionView
	Results   map[int]string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	e := entryFrom(r)

	accept := make([]string, len(document.Formats))
	for i, f := range document.Formats {
		accept[i] = "." + string(f)
	}

	data := pageData{
		Skills:    s.registry.All(),
		Providers: config.Providers,
		Accept:    strings.Join(accept, ","),
		View:      s.view(e),
		Results:   e.Value.session.Results(),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes()) //nolint:errcheck
}
