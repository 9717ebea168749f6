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
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/srv"
	"jinr.ru/greenlab/go-pl4/pkg/srv/state"
)

// ApiClient talks to a running go-pl4 server
type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d%s", cfg.Api.Address, cfg.Api.Port, srv.ApiPrefix),
	}
}

func (c *ApiClient) url(path string) string {
	return c.ApiPrefix + path
}

// check turns a non 200 response into an error, using the server's
// error body when there is one
func check(r *req.Resp) error {
	if r.Response().StatusCode == http.StatusOK {
		return nil
	}
	apiErr := &srv.ApiError{}
	if err := r.ToJSON(apiErr); err != nil || apiErr.Message == "" {
		return errors.New(r.Response().Status)
	}
	return apiErr
}

func (c *ApiClient) status(r *req.Resp, err error) (*srv.Status, error) {
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	status := &srv.Status{}
	if err := r.ToJSON(status); err != nil {
		return nil, err
	}
	return status, nil
}

// Status sends request to get the device state and counters
func (c *ApiClient) Status() (*srv.Status, error) {
	return c.status(req.Get(c.url("/status")))
}

// Start sends request to connect to the device and start streaming
func (c *ApiClient) Start() (*srv.Status, error) {
	return c.status(req.Post(c.url("/start")))
}

// Stop sends request to stop streaming
func (c *ApiClient) Stop() (*srv.Status, error) {
	return c.status(req.Post(c.url("/stop")))
}

func (c *ApiClient) Sessions() ([]*state.Session, error) {
	r, err := req.Get(c.url("/sessions"))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	var sessions []*state.Session
	if err := r.ToJSON(&sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *ApiClient) Session(id string) (*state.Session, error) {
	r, err := req.Get(c.url("/sessions/" + id))
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	session := &state.Session{}
	if err := r.ToJSON(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Record sends request to start writing batches, returns the file name
func (c *ApiClient) Record(dir, filePrefix string) (string, error) {
	persist := &srv.Persist{
		Dir:        dir,
		FilePrefix: filePrefix,
	}
	r, err := req.Post(c.url("/record"), req.BodyJSON(persist))
	if err != nil {
		return "", err
	}
	if err := check(r); err != nil {
		return "", err
	}
	rec := &srv.Recording{}
	if err := r.ToJSON(rec); err != nil {
		return "", err
	}
	return rec.Filename, nil
}

// Flush sends request to close the current recording
func (c *ApiClient) Flush() error {
	r, err := req.Get(c.url("/flush"))
	if err != nil {
		return err
	}
	return check(r)
}
