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

package driver

import (
	"time"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-pl4/pkg/decoder"
	"jinr.ru/greenlab/go-pl4/pkg/demux"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
)

type Status struct {
	Device  string             `json:"device"`
	State   State              `json:"state"`
	Error   string             `json:"error,omitempty"`
	Session string             `json:"session,omitempty"`
	Origin  *time.Time         `json:"origin,omitempty"`
	Info    *layers.DeviceInfo `json:"info,omitempty"`
	Ticks   uint64             `json:"ticks"`
	// BudgetExhausted counts ticks which stopped reading with data pending
	BudgetExhausted uint64        `json:"budgetExhausted"`
	Decoder         decoder.Stats `json:"decoder"`
	Demux           demux.Stats   `json:"demux"`
}

func (s *Status) String() string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

func (n *Node) Status() *Status {
	n.mu.Lock()
	defer n.mu.Unlock()

	status := &Status{
		Device:  n.cfg.DeviceSerialOrIndex(),
		State:   n.state,
		Session: n.session,
		Ticks:   n.ticks,

		BudgetExhausted: n.budgetExhausted,
		Decoder:         n.decoder.Stats(),
		Demux:           n.demux.Stats(),
	}
	if n.lastErr != nil {
		status.Error = n.lastErr.Error()
	}
	if n.info != nil {
		info := *n.info
		status.Info = &info
	}
	if !n.origin.IsZero() {
		origin := n.origin
		status.Origin = &origin
	}
	return status
}
