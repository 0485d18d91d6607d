package web

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/vincent-yangyijie/triz-agent/internal/llm"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
)

// userState is everything one browser session owns. engine is nil until a
// provider configures successfully; it is only touched while the session
// entry is locked.
type userState struct {
	session *pipeline.Session
	engine  *llm.Engine
	limiter *rate.Limiter

	mu          sync.Mutex
	model       string
	providerErr string
	upload      string
}

func (st *userState) status() (model, providerErr, upload string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.model, st.providerErr, st.upload
}

// useEngine makes engine the session's generator and clears any earlier
// configuration error.
func (st *userState) useEngine(engine *llm.Engine) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.engine = engine
	st.model = engine.Model()
	st.providerErr = ""
	st.session.SetProvider(engine.Provider())
}

// failProvider records why no provider is usable yet.
func (st *userState) failProvider(err error) {
	st.mu.Lock()
	st.providerErr = err.Error()
	st.mu.Unlock()
}

func (st *userState) setUpload(summary string) {
	st.mu.Lock()
	st.upload = summary
	st.mu.Unlock()
}
