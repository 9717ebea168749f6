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

package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSessions(t *testing.T) {
	s := newTestState(t)
	started := time.Date(2026, 10, 17, 9, 30, 0, 123, time.UTC)
	first := &Session{
		ID:      "01890000-0000-7000-8000-000000000001",
		Device:  "PL4-0042",
		State:   driver.Streaming,
		Started: started,
		Info:    &layers.DeviceInfo{DeviceID: 4, SerialNumber: 42},
	}
	second := &Session{ID: "01890000-0000-7000-8000-000000000002", Device: "PL4-0042", State: driver.Faulted, Error: "unplugged"}
	for _, session := range []*Session{second, first} {
		if err := s.SetSession(session); err != nil {
			t.Fatal(err)
		}
	}

	stopped := started.Add(time.Minute)
	first.State = driver.Disconnected
	first.Stopped = &stopped
	if err := s.SetSession(first); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != driver.Disconnected || !got.Started.Equal(started) || got.Stopped == nil || !got.Stopped.Equal(stopped) {
		t.Errorf("session = %+v", got)
	}
	if got.Info == nil || got.Info.SerialNumber != 42 {
		t.Errorf("info = %+v", got.Info)
	}

	all, err := s.GetSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != first.ID || all[1].Error != "unplugged" {
		t.Errorf("sessions = %v", all)
	}

	if err := s.DeleteSession(second.ID); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetSession(second.ID)
	var notFound ErrSessionNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("GetSession() after delete = %v", err)
	}
}
