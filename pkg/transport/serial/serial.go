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

// Package serial opens PL4 devices through the FTDI virtual COM port
package serial

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
)

const (
	// VendorID and ProductID of the PL4 USB bridge
	VendorID  = "24F4"
	ProductID = "1000"

	DefaultBaudRate = 921600
)

type Transport struct {
	// listPorts is replaced in tests
	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
}

func New() *Transport {
	return &Transport{
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

func isPL4(p *enumerator.PortDetails) bool {
	return p.IsUSB && strings.EqualFold(p.VID, VendorID) && strings.EqualFold(p.PID, ProductID)
}

// List returns the PL4 devices currently attached
func (t *Transport) List() ([]transport.Port, error) {
	details, err := t.listPorts()
	if err != nil {
		return nil, err
	}
	var ports []transport.Port
	for _, p := range details {
		if !isPL4(p) {
			continue
		}
		ports = append(ports, transport.Port{
			Path:         p.Name,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
			VID:          p.VID,
			PID:          p.PID,
		})
	}
	return ports, nil
}

// Resolve returns the port path selected by the descriptor
func (t *Transport) Resolve(d transport.Descriptor) (string, error) {
	if d.Path != "" {
		return d.Path, nil
	}
	ports, err := t.List()
	if err != nil {
		return "", err
	}
	if d.Serial != "" {
		for _, p := range ports {
			if p.SerialNumber == d.Serial {
				return p.Path, nil
			}
		}
		return "", fmt.Errorf("no device with serial number %s", d.Serial)
	}
	if d.Index < 0 || d.Index >= len(ports) {
		return "", fmt.Errorf("device index %d out of range, %d devices attached", d.Index, len(ports))
	}
	return ports[d.Index].Path, nil
}

func (t *Transport) Open(d transport.Descriptor) (transport.Handle, error) {
	path, err := t.Resolve(d)
	if err != nil {
		return nil, &transport.ConnectionError{Device: d.String(), What: "resolve port", Err: err}
	}
	baudRate := d.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	log.Debug("Opening serial port %s at %d baud", path, baudRate)
	port, err := t.openPort(path, mode)
	if err != nil {
		return nil, &transport.ConnectionError{Device: path, What: "open port", Err: err}
	}
	return &handle{port: port, path: path}, nil
}

type handle struct {
	mu      sync.Mutex
	port    serial.Port
	path    string
	timeout time.Duration
	closed  bool
}

func (h *handle) Read(max int, timeout time.Duration) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &transport.IOError{Op: "read " + h.path, Err: transport.ErrClosed}
	}
	if max <= 0 {
		return []byte{}, nil
	}
	if timeout != h.timeout {
		if err := h.port.SetReadTimeout(timeout); err != nil {
			return nil, &transport.IOError{Op: "read " + h.path, Err: err}
		}
		h.timeout = timeout
	}
	buf := make([]byte, max)
	n, err := h.port.Read(buf)
	if err != nil {
		return nil, &transport.IOError{Op: "read " + h.path, Err: err}
	}
	return buf[:n], nil
}

func (h *handle) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, &transport.IOError{Op: "write " + h.path, Err: transport.ErrClosed}
	}
	n, err := h.port.Write(data)
	if err != nil {
		return n, &transport.IOError{Op: "write " + h.path, Err: err}
	}
	return n, nil
}

// Purge drops bytes received but not read yet
func (h *handle) Purge() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &transport.IOError{Op: "purge " + h.path, Err: transport.ErrClosed}
	}
	if err := h.port.ResetInputBuffer(); err != nil {
		return &transport.IOError{Op: "purge " + h.path, Err: err}
	}
	return nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.port.Close()
}
