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
	"path/filepath"
	"testing"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/record"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
	"jinr.ru/greenlab/go-pl4/pkg/transport/sim"
)

type failingTransport struct{}

func (failingTransport) Open(desc transport.Descriptor) (transport.Handle, error) {
	return nil, errors.New("no such device")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "state.db")
	cfg.Device.Transport = config.TransportSim
	cfg.Record.Dir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, tr transport.Transport) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), testConfig(t), tr)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewTransport(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{"serial", config.TransportSerial, false},
		{"sim", config.TransportSim, false},
		{"unknown", "usb3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultDeviceConfig()
			cfg.Transport = tt.kind
			tr, err := NewTransport(cfg)
			if tt.wantErr {
				var unknown ErrUnknownTransport
				if !errors.As(err, &unknown) {
					t.Fatalf("got %v, want ErrUnknownTransport", err)
				}
				return
			}
			if err != nil || tr == nil {
				t.Fatalf("got %v, %v", tr, err)
			}
		})
	}
}

func TestListSimPorts(t *testing.T) {
	cfg := config.NewDefaultDeviceConfig()
	cfg.Transport = config.TransportSim
	ports, err := ListPorts(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 1 || ports[0].Path != sim.PortName {
		t.Fatalf("got %+v", ports)
	}
}

func TestServerSessionLifecycle(t *testing.T) {
	s := newTestServer(t, sim.New())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := s.Status()
	if status.State != driver.Streaming || status.Session == "" {
		t.Fatalf("got state %s session %q", status.State, status.Session)
	}

	saved, err := s.Session(status.Session)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if saved.State != driver.Streaming || saved.Stopped != nil {
		t.Fatalf("saved session %+v", saved)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	saved, err = s.Session(status.Session)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if saved.State != driver.Disconnected || saved.Stopped == nil {
		t.Fatalf("saved session after stop %+v", saved)
	}

	sessions, err := s.Sessions()
	if err != nil || len(sessions) != 1 {
		t.Fatalf("got %d sessions, %v", len(sessions), err)
	}
}

func TestServerFailedStartIsNotSaved(t *testing.T) {
	s := newTestServer(t, failingTransport{})

	err := s.Start(context.Background())
	var connErr *transport.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("got %v, want ConnectionError", err)
	}
	if s.Status().State != driver.Faulted {
		t.Fatalf("got state %s", s.Status().State)
	}
	sessions, err := s.Sessions()
	if err != nil || len(sessions) != 0 {
		t.Fatalf("got %d sessions, %v", len(sessions), err)
	}
}

func TestServerTickRecords(t *testing.T) {
	s := newTestServer(t, sim.New())

	filename, err := s.Persist("", "")
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if filepath.Dir(filename) != s.Config.Record.Dir {
		t.Fatalf("recording %s outside %s", filename, s.Config.Record.Dir)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	records, err := record.ReadFile(filename)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("no batches recorded")
	}
	session := s.Status().Session
	for _, r := range records {
		if r.Session != session {
			t.Errorf("record session %q, want %q", r.Session, session)
		}
		if r.Batch.Empty() {
			t.Errorf("empty batch recorded on port %s", r.Batch.Port)
		}
	}
}
