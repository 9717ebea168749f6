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

// Package state keeps acquisition sessions in a bbolt database
package state

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
	"jinr.ru/greenlab/go-pl4/pkg/log"
)

const (
	SessionsBucket = "sessions"
)

// Session is one Start..Stop run of the device
type Session struct {
	ID      string             `json:"id"`
	Device  string             `json:"device"`
	State   driver.State       `json:"state"`
	Started time.Time          `json:"started"`
	Stopped *time.Time         `json:"stopped,omitempty"`
	Error   string             `json:"error,omitempty"`
	Info    *layers.DeviceInfo `json:"info,omitempty"`
	Ticks   uint64             `json:"ticks"`
	Frames  uint64             `json:"frames"`
	Gaps    uint64             `json:"gaps"`
	Record  string             `json:"record,omitempty"`
}

func (s *Session) String() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

type ErrSessionNotFound struct {
	ID string
}

func (e ErrSessionNotFound) Error() string {
	return fmt.Sprintf("Session not found: %s", e.ID)
}

type State struct {
	context.Context
	DB *bbolt.DB
}

func NewState(ctx context.Context, path string) (*State, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(SessionsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &State{
		Context: ctx,
		DB:      db,
	}, nil
}

// Close ...
func (s *State) Close() {
	s.DB.Close()
}

// SetSession creates or replaces the session with the same id
func (s *State) SetSession(session *Session) error {
	log.Debug("Saving session: %s state: %s", session.ID, session.State)
	data, err := yaml.Marshal(session)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(SessionsBucket))
		if b == nil {
			return fmt.Errorf("Bucket not found: %s", SessionsBucket)
		}
		return b.Put([]byte(session.ID), data)
	})
}

func (s *State) GetSession(id string) (*Session, error) {
	session := &Session{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(SessionsBucket))
		if b == nil {
			return fmt.Errorf("Bucket not found: %s", SessionsBucket)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrSessionNotFound{ID: id}
		}
		return yaml.Unmarshal(data, session)
	}); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSessions returns all sessions, oldest first. Session ids are
// time ordered so key order is start order.
func (s *State) GetSessions() ([]*Session, error) {
	var sessions []*Session
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(SessionsBucket))
		if b == nil {
			return fmt.Errorf("Bucket not found: %s", SessionsBucket)
		}
		return b.ForEach(func(k, v []byte) error {
			session := &Session{}
			if err := yaml.Unmarshal(v, session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *State) DeleteSession(id string) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(SessionsBucket))
		if b == nil {
			return fmt.Errorf("Bucket not found: %s", SessionsBucket)
		}
		if b.Get([]byte(id)) == nil {
			return ErrSessionNotFound{ID: id}
		}
		return b.Delete([]byte(id))
	})
}
