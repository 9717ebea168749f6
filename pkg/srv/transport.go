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
	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
	"jinr.ru/greenlab/go-pl4/pkg/transport/serial"
	"jinr.ru/greenlab/go-pl4/pkg/transport/sim"
)

// NewTransport returns the transport named in the device config
func NewTransport(cfg *config.DeviceConfig) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportSerial:
		return serial.New(), nil
	case config.TransportSim:
		return sim.New(sim.WithChannels(cfg.ChannelCountHigh, cfg.ChannelCountLow)), nil
	default:
		return nil, ErrUnknownTransport{Name: cfg.Transport}
	}
}

// ListPorts enumerates devices visible to the configured transport
func ListPorts(cfg *config.DeviceConfig) ([]transport.Port, error) {
	tr, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	lister, ok := tr.(transport.Lister)
	if !ok {
		return nil, nil
	}
	return lister.List()
}
