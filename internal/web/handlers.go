package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/document"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
	"github.com/vincent-yangyijie/triz-agent/internal/report"
	"github.com/vincent-yangyijie/triz-agent/internal/session"
)

const emptyInputWarning = "Please provide input text."

type ctxKey struct{}

type entry = session.Entry[*userState]

// withSession attaches the caller's session, creating one and setting the
// cookie when the request carries none or an expired one.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(CookieName); err == nil {
			id = c.Value
		}

		e, created := s.sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    e.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, e)))
	})
}

func entryFrom(r *http.Request) *entry {
	return r.Context().Value(ctxKey{}).(*entry)
}

// lock takes the session for one action. A session already running
// something answers 409 instead of queueing.
func lock(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	e := entryFrom(r)
	if !e.TryLock() {
		writeError(w, http.StatusConflict, "an analysis is already running for this session")
		return nil, false
	}
	return e, true
}

type skillView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
}

type resultView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

type sessionView struct {
	ID            string       `json:"id"`
	Provider      string       `json:"provider"`
	Model         string       `json:"model,omitempty"`
	ProviderError string       `json:"provider_error,omitempty"`
	Input         string       `json:"input"`
	Upload        string       `json:"upload,omitempty"`
	Completed     int          `json:"completed"`
	Total         int          `json:"total"`
	Results       []resultView `json:"results"`
}

func (s *Server) view(e *entry) sessionView {
	st := e.Value
	model, providerErr, upload := st.status()
	results := st.session.Results()

	v := sessionView{
		ID:            e.ID,
		Provider:      st.session.Provider(),
		Model:         model,
		ProviderError: providerErr,
		Input:         st.session.Input(),
		Upload:        upload,
		Completed:     len(results),
		Total:         s.registry.Len(),
		Results:       []resultView{},
	}
	for _, sk := range s.registry.All() {
		text, ok := results[sk.ID]
		if !ok {
			continue
		}
		v.Results = append(v.Results, resultView{
			ID:   sk.ID,
			Name: sk.Name,
			Text: text,
			HTML: string(s.markdown.Render(text)),
		})
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	out := make([]skillView, 0, s.registry.Len())
	for _, sk := range s.registry.All() {
		out = append(out, skillView{
			ID:          sk.ID,
			Name:        sk.Name,
			ShortName:   sk.ShortName(),
			Description: sk.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(entryFrom(r)))
}

// handleEndSession drops the caller's session and expires the cookie. The
// next request starts fresh.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	e, ok := lock(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(e.ID)
	e.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type inputRequest struct {
	Input *string `json:"input"`
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Input == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"input\": \"...\"}")
		return
	}

	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	e.Value.session.SetInput(*req.Input)
	writeJSON(w, http.StatusOK, s.view(e))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Upload.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !document.Supported(header.Filename) {
		writeError(w, http.StatusUnsupportedMediaType, "upload a PDF, DOCX, TXT or MD file")
		return
	}
	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err))
		return
	}

	doc, err := document.Extract(header.Filename, data)
	if err != nil {
		s.logger.Warn("upload rejected", "name", header.Filename, "error", err)
		status := http.StatusUnprocessableEntity
		if errors.Is(err, document.ErrUnsupported) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, fmt.Sprintf("Error reading file: %v", err))
		return
	}

	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	st := e.Value
	st.session.SetInput(doc.Content)
	st.setUpload(fmt.Sprintf("File '%s' loaded successfully! (%s)", header.Filename, doc.Metadata.Summary()))
	s.logger.Info("upload extracted", "session", e.ID, "name", header.Filename, "chars", doc.Metadata.CharCount)
	s.logger.Debug("upload preview", "session", e.ID, "text", doc.Preview(80))

	writeJSON(w, http.StatusOK, s.view(e))
}

type providerRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Provider == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"provider\": \"deepseek|kimi\"}")
		return
	}

	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	st := e.Value
	if st.engine == nil {
		engine, err := s.newEngine(req.Provider)
		if err != nil {
			st.failProvider(err)
			writeError(w, providerStatus(err), err.Error())
			return
		}
		st.useEngine(engine)
	} else {
		if err := st.engine.Configure(req.Provider); err != nil {
			writeError(w, providerStatus(err), err.Error())
			return
		}
		st.useEngine(st.engine)
	}

	writeJSON(w, http.StatusOK, s.view(e))
}

func providerStatus(err error) int {
	if errors.Is(err, config.ErrUnknownProvider) || errors.Is(err, config.ErrMissingAPIKey) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	st := e.Value
	s.controller(st).Clear(st.session)
	writeJSON(w, http.StatusOK, s.view(e))
}

// runInput returns the input an action should use: the request body's when
// given, otherwise the session's current input.
func runInput(w http.ResponseWriter, r *http.Request, st *userState) (string, error) {
	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.Input != nil {
		return *req.Input, nil
	}
	return st.session.Input(), nil
}

// rejection is why an action cannot generate.
type rejection struct {
	status  int
	warning bool
	message string
}

func (rj *rejection) write(w http.ResponseWriter) {
	if rj.warning {
		writeWarning(w, rj.message)
		return
	}
	writeError(w, rj.status, rj.message)
}

// checkRun returns nil when the session can generate for input. Blank input
// is a warning and nothing else happens.
func checkRun(st *userState, input string) *rejection {
	if strings.TrimSpace(input) == "" {
		return &rejection{status: http.StatusUnprocessableEntity, warning: true, message: emptyInputWarning}
	}
	if st.engine == nil {
		_, providerErr, _ := st.status()
		return &rejection{status: http.StatusBadRequest, message: "no provider configured: " + providerErr}
	}
	if !st.limiter.Allow() {
		return &rejection{status: http.StatusTooManyRequests, message: "rate limit exceeded, try again shortly"}
	}
	return nil
}

func (s *Server) handleRunSingle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || !s.registry.Has(id) {
		writeError(w, http.StatusNotFound, "unknown skill")
		return
	}

	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	st := e.Value
	input, err := runInput(w, r, st)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rj := checkRun(st, input); rj != nil {
		rj.write(w)
		return
	}

	err = s.controller(st).RunSingle(context.WithoutCancel(r.Context()), st.session, id, input)
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput):
		writeWarning(w, emptyInputWarning)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.view(e))
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	e, ok := lock(w, r)
	if !ok {
		return
	}
	defer e.Unlock()

	st := e.Value
	input, err := runInput(w, r, st)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rj := checkRun(st, input); rj != nil {
		rj.write(w)
		return
	}

	err = s.controller(st).RunAll(context.WithoutCancel(r.Context()), st.session, input, nil)
	if errors.Is(err, pipeline.ErrEmptyInput) {
		writeWarning(w, emptyInputWarning)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.view(e))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st := entryFrom(r).Value
	results := st.session.Results()
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no results to export yet")
		return
	}

	body := report.Build(s.registry, results, st.session.Input(), s.cfg.Report.InputLimit)
	writeAttachment(w, report.ReportFilename, report.MIMEType, body)
}

func (s *Server) handleSkillOutput(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown skill")
		return
	}

	text, ok := report.SkillOutput(entryFrom(r).Value.session.Results(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "Run the analysis to see results.")
		return
	}
	writeAttachment(w, report.SkillFilename(id), report.MIMEType, text)
}
