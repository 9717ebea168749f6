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

package command

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/srv"
	"jinr.ru/greenlab/go-pl4/pkg/srv/state"
)

func newTestClient(t *testing.T, h http.Handler) *ApiClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	host, port, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewDefaultConfig()
	cfg.Api.Address = host
	cfg.Api.Port, _ = strconv.Atoi(port)
	return NewApiClient(cfg)
}

func reply(code int, v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v)
	}
}

func TestClientStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", reply(http.StatusOK, &srv.Status{Status: &driver.Status{Device: "#0", State: driver.Streaming}}))
	c := newTestClient(t, mux)

	status, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if status.State != driver.Streaming || status.Device != "#0" {
		t.Fatalf("got %+v", status.Status)
	}
}

func TestClientErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start", reply(http.StatusConflict, &srv.ApiError{Code: http.StatusConflict, Message: "busy"}))
	mux.HandleFunc("/api/flush", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	_, err := c.Start()
	apiErr, ok := err.(*srv.ApiError)
	if !ok || apiErr.Message != "busy" {
		t.Fatalf("got %v", err)
	}
	if err := c.Flush(); err == nil {
		t.Fatal("flush: want error")
	}
}

func TestClientRecordAndSessions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/record", func(w http.ResponseWriter, r *http.Request) {
		persist := &srv.Persist{}
		if err := json.NewDecoder(r.Body).Decode(persist); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		reply(http.StatusOK, &srv.Recording{Filename: persist.Dir + "/" + persist.FilePrefix + ".cbor"})(w, r)
	})
	mux.HandleFunc("/api/sessions", reply(http.StatusOK, []*state.Session{{ID: "a"}, {ID: "b"}}))
	mux.HandleFunc("/api/sessions/a", reply(http.StatusOK, &state.Session{ID: "a", Frames: 7}))
	c := newTestClient(t, mux)

	filename, err := c.Record("/data", "run")
	if err != nil || filename != "/data/run.cbor" {
		t.Fatalf("got %q, %v", filename, err)
	}
	sessions, err := c.Sessions()
	if err != nil || len(sessions) != 2 {
		t.Fatalf("got %d sessions, %v", len(sessions), err)
	}
	session, err := c.Session("a")
	if err != nil || session.Frames != 7 {
		t.Fatalf("got %+v, %v", session, err)
	}
}
