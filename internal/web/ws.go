package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
)

// Frame types sent on the run-all socket.
const (
	FrameProgress = "progress"
	FrameDone     = "done"
	FrameWarning  = "warning"
	FrameError    = "error"
)

// runFrame is one server message on the run-all socket.
type runFrame struct {
	Type      string       `json:"type"`
	Stage     string       `json:"stage,omitempty"`
	SkillID   int          `json:"skill_id,omitempty"`
	SkillName string       `json:"skill_name,omitempty"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Fraction  float64      `json:"fraction"`
	Message   string       `json:"message,omitempty"`
	Session   *sessionView `json:"session,omitempty"`
}

// handleRunAllWS runs the whole pipeline and streams progress. The client
// sends one {"input": "..."} frame (input optional) to start; the server
// answers with progress frames and a final done, warning or error frame.
func (s *Server) handleRunAllWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("ws accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	var req inputRequest
	err = wsjson.Read(ctx, conn, &req)
	cancel()
	if err != nil {
		s.logger.Debug("ws read start frame", "error", err)
		return
	}

	e := entryFrom(r)
	if !e.TryLock() {
		s.send(r.Context(), conn, runFrame{Type: FrameError, Message: "an analysis is already running for this session"})
		return
	}
	defer e.Unlock()

	st := e.Value
	input := st.session.Input()
	if req.Input != nil {
		input = *req.Input
	}

	if rj := checkRun(st, input); rj != nil {
		f := runFrame{Type: FrameError, Message: rj.message}
		if rj.warning {
			f.Type = FrameWarning
		}
		s.send(r.Context(), conn, f)
		return
	}

	// the run outlives a closed socket so results still land in the session
	runCtx := context.WithoutCancel(r.Context())
	err = s.controller(st).RunAll(runCtx, st.session, input, func(p pipeline.Progress) {
		if p.Stage == pipeline.StageDone {
			return
		}
		s.send(r.Context(), conn, runFrame{
			Type:      FrameProgress,
			Stage:     p.Stage.String(),
			SkillID:   p.SkillID,
			SkillName: p.SkillName,
			Completed: p.Completed,
			Total:     p.Total,
			Fraction:  p.Fraction(),
			Message:   p.Message,
		})
	})
	if err != nil {
		s.send(r.Context(), conn, runFrame{Type: FrameError, Message: err.Error()})
		return
	}

	v := s.view(e)
	s.send(r.Context(), conn, runFrame{
		Type:      FrameDone,
		Completed: v.Completed,
		Total:     v.Total,
		Fraction:  1,
		Message:   "Full Analysis Complete!",
		Session:   &v,
	})
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, f runFrame) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, f); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("ws write", "type", f.Type, "error", err)
	}
}
