/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/srv/state"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
)

const (
	ApiPrefix       = "/api"
	ShutdownTimeout = 5 * time.Second
)

//go:embed swagger.json
var swaggerSpec []byte

// Persist is the body of the record request, empty fields fall back to the config
type Persist struct {
	Dir        string `json:"dir,omitempty"`
	FilePrefix string `json:"filePrefix,omitempty"`
}

type Recording struct {
	Filename string `json:"filename"`
}

type ApiServer struct {
	*config.ApiConfig
	*mux.Router
	server  *Server
	handler http.Handler
}

func NewApiServer(cfg *config.ApiConfig, server *Server) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Address, cfg.Port)

	doc, err := loads.Analyzed(swaggerSpec, "")
	if err != nil {
		return nil, err
	}

	s := &ApiServer{
		ApiConfig: cfg,
		server:    server,
	}
	s.configureRouter()

	docs := middleware.Redoc(middleware.RedocOpts{
		BasePath: ApiPrefix,
		Path:     "docs",
		SpecURL:  ApiPrefix + "/swagger.json",
		Title:    "go-pl4 API",
	}, s.Router)
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.LineLogger{Level: log.ErrorLevel}),
	)(handlers.CombinedLoggingHandler(
		log.LineLogger{Level: log.DebugLevel},
		middleware.Spec(ApiPrefix, doc.Raw(), docs),
	))
	return s, nil
}

func (s *ApiServer) Handler() http.Handler {
	return s.handler
}

// Run serves the API until the context is done
func (s *ApiServer) Run(ctx context.Context) error {
	log.Debug("Starting API server: address: %s port: %d", s.Address, s.Port)
	httpServer := &http.Server{
		Handler: s.handler,
		Addr:    fmt.Sprintf("%s:%d", s.Address, s.Port),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Error while shutting down API server: %s", err)
		}
		return ctx.Err()
	}
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix(ApiPrefix).Subrouter()
	subRouter.HandleFunc("/status", s.handleStatus()).Methods("GET")
	subRouter.HandleFunc("/start", s.handleStart()).Methods("POST")
	subRouter.HandleFunc("/stop", s.handleStop()).Methods("POST")
	subRouter.HandleFunc("/sessions", s.handleSessions()).Methods("GET")
	subRouter.HandleFunc("/sessions/{id}", s.handleSession()).Methods("GET")
	subRouter.HandleFunc("/record", s.handleRecord()).Methods("POST")
	subRouter.HandleFunc("/flush", s.handleFlush()).Methods("GET")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, &ApiError{Code: code, Message: err.Error()})
}

// swagger:route GET /status status
// Current device state and counters
// responses:
//   200: Status
func (s *ApiServer) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.server.Status())
	}
}

// swagger:route POST /start start
// Connect to the device and start streaming
// responses:
//   200: Status
//   409: Error
//   502: Error
func (s *ApiServer) handleStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling start request")
		err := s.server.Start(r.Context())
		var connErr *transport.ConnectionError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, s.server.Status())
		case errors.Is(err, driver.ErrInvalidState):
			writeError(w, http.StatusConflict, err)
		case errors.As(err, &connErr):
			writeError(w, http.StatusBadGateway, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
	}
}

// swagger:route POST /stop stop
// Stop streaming and close the device
// responses:
//   200: Status
func (s *ApiServer) handleStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling stop request")
		if err := s.server.Stop(); err != nil {
			log.Warning("Error while closing device: %s", err)
		}
		writeJSON(w, http.StatusOK, s.server.Status())
	}
}

// swagger:route GET /sessions sessions
// All recorded sessions
// responses:
//   200: []Session
func (s *ApiServer) handleSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := s.server.Sessions()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if sessions == nil {
			sessions = []*state.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// swagger:route GET /sessions/{id} session
// responses:
//   200: Session
//   404: Error
func (s *ApiServer) handleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		session, err := s.server.Session(vars["id"])
		var notFound state.ErrSessionNotFound
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, session)
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
	}
}

// swagger:route POST /record record
// Start writing batches to a new file
// responses:
//   200: Recording
//   400: Error
func (s *ApiServer) handleRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		persist := &Persist{}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(persist); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}

		log.Debug("Handling record request: dir: %s filePrefix: %s", persist.Dir, persist.FilePrefix)

		filename, err := s.server.Persist(persist.Dir, persist.FilePrefix)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, &Recording{Filename: filename})
	}
}

// swagger:route GET /flush flush
// Flush and close the current recording
// responses:
//   200:
func (s *ApiServer) handleFlush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling flush request")
		if err := s.server.Flush(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
