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
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/metrics"
	"jinr.ru/greenlab/go-pl4/pkg/record"
	"jinr.ru/greenlab/go-pl4/pkg/srv/state"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
)

// Status is the driver status plus what the host does with the batches
type Status struct {
	*driver.Status
	Record string `json:"record,omitempty"`
}

func (s *Status) String() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// Server runs the driver node standalone: it ticks the node at the
// configured rate and hands every tick to the recorder and metrics sinks
type Server struct {
	context.Context
	*config.Config
	Node     *driver.Node
	State    *state.State
	Recorder *record.Recorder
	Metrics  *metrics.Sink
	api      *ApiServer
	now      func() time.Time

	mu        sync.Mutex
	lastState driver.State
}

func NewServer(ctx context.Context, cfg *config.Config, tr transport.Transport) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info("Initializing server for device %s over %s transport", cfg.Device.DeviceSerialOrIndex(), cfg.Device.Transport)

	st, err := state.NewState(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Context:  ctx,
		Config:   cfg,
		State:    st,
		Recorder: record.NewRecorder(),
		Metrics:  metrics.New(cfg.Influx),
		now:      time.Now,
	}
	node, err := driver.New(cfg.Device, tr, driver.WithStateHook(s.onStateChange))
	if err != nil {
		st.Close()
		return nil, err
	}
	s.Node = node

	api, err := NewApiServer(cfg.Api, s)
	if err != nil {
		st.Close()
		return nil, err
	}
	s.api = api
	return s, nil
}

// onStateChange runs under the node lock, it must not call the node
func (s *Server) onStateChange(from, to driver.State, err error) {
	s.Metrics.State(s.Config.Device.DeviceSerialOrIndex(), from, to, err, s.now())
}

func (s *Server) Status() *Status {
	return &Status{Status: s.Node.Status(), Record: s.Recorder.Filename()}
}

func (s *Server) saveSession(status *driver.Status) {
	if status.Session == "" {
		return
	}
	session := &state.Session{
		ID:     status.Session,
		Device: status.Device,
		State:  status.State,
		Error:  status.Error,
		Info:   status.Info,
		Ticks:  status.Ticks,
		Frames: status.Decoder.Frames,
		Gaps:   status.Demux.High.Gaps + status.Demux.Low.Gaps,
		Record: s.Recorder.Filename(),
	}
	if status.Origin != nil {
		session.Started = *status.Origin
	}
	if status.State == driver.Disconnected {
		stopped := s.now()
		session.Stopped = &stopped
	}
	if err := s.State.SetSession(session); err != nil {
		log.Error("Error while saving session %s: %s", session.ID, err)
	}
}

// observe persists the session when the node changed state since the last call
func (s *Server) observe(status *driver.Status) {
	s.mu.Lock()
	changed := status.State != s.lastState
	s.lastState = status.State
	s.mu.Unlock()
	if changed {
		s.saveSession(status)
	}
}

func (s *Server) Start(ctx context.Context) error {
	err := s.Node.Start(ctx)
	s.observe(s.Node.Status())
	return err
}

func (s *Server) Stop() error {
	err := s.Node.Stop()
	s.observe(s.Node.Status())
	return err
}

// Tick polls the node once and passes the batches on
func (s *Server) Tick() {
	hz1024, hz256 := s.Node.OnTick()
	status := s.Node.Status()
	if err := s.Recorder.Consume(status.Session, hz1024, hz256); err != nil {
		log.Error("Error while recording batches: %s", err)
	}
	s.Metrics.Tick(status, hz1024, hz256, s.now())
	s.observe(status)
}

func (s *Server) Sessions() ([]*state.Session, error) {
	return s.State.GetSessions()
}

func (s *Server) Session(id string) (*state.Session, error) {
	return s.State.GetSession(id)
}

// Persist starts recording, an empty dir falls back to the configured one
func (s *Server) Persist(dir, filePrefix string) (string, error) {
	if dir == "" && s.Config.Record != nil {
		dir = s.Config.Record.Dir
	}
	if filePrefix == "" && s.Config.Record != nil {
		filePrefix = s.Config.Record.FilePrefix
	}
	return s.Recorder.Persist(dir, filePrefix)
}

func (s *Server) Flush() error {
	return s.Recorder.Flush()
}

func (s *Server) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.Device.TickPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Run ticks the node and serves the API until the context is done
func (s *Server) Run(autoStart bool) error {
	defer s.Close()

	eg, ctx := errgroup.WithContext(s.Context)
	if autoStart {
		if err := s.Start(ctx); err != nil {
			log.Error("Error while starting device: %s", err)
		}
	}
	eg.Go(func() error {
		return s.tickLoop(ctx)
	})
	eg.Go(func() error {
		return s.api.Run(ctx)
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the device and releases the sinks and the database
func (s *Server) Close() {
	if err := s.Stop(); err != nil {
		log.Error("Error while stopping device: %s", err)
	}
	if err := s.Recorder.Flush(); err != nil {
		log.Error("Error while flushing records: %s", err)
	}
	s.Metrics.Close()
	s.State.Close()
}
