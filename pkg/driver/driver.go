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

// Package driver is the PL4 device node. It is polled by the host: Start
// connects, every OnTick reads what arrived, decodes it and hands off one
// batch per channel group, Stop releases the device.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jinr.ru/greenlab/go-pl4/pkg/batch"
	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/decoder"
	"jinr.ru/greenlab/go-pl4/pkg/demux"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
)

type Option func(n *Node)

// WithClock replaces the wall clock used for session origins and read budgets
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		n.now = now
	}
}

func WithStateHook(hook StateHook) Option {
	return func(n *Node) {
		n.hooks = append(n.hooks, hook)
	}
}

type Node struct {
	mu sync.Mutex

	cfg       config.DeviceConfig
	transport transport.Transport
	handle    transport.Handle

	state   State
	lastErr error
	info    *layers.DeviceInfo
	session string
	origin  time.Time
	ticks   uint64
	// ticks that ended on the read budget instead of an empty read
	budgetExhausted uint64

	decoder   *decoder.Decoder
	demux     *demux.Demux
	assembler *batch.Assembler

	now   func() time.Time
	hooks []StateHook
}

func New(cfg *config.DeviceConfig, tr transport.Transport, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	high := demux.HighGroup(cfg.ChannelCountHigh)
	low := demux.LowGroup(cfg.ChannelCountLow)
	assembler := batch.NewAssembler(high, low)
	n := &Node{
		cfg:       *cfg,
		transport: tr,
		state:     Disconnected,
		decoder:   decoder.New(decoder.Layout{HighChannels: cfg.ChannelCountHigh, LowChannels: cfg.ChannelCountLow}),
		demux:     demux.New(high, low, assembler),
		assembler: assembler,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Node) setState(state State, err error) {
	from := n.state
	n.state = state
	if err != nil {
		n.lastErr = err
	}
	if from == state {
		return
	}
	if err != nil {
		log.Info("Device %s: %s -> %s: %s", n.cfg.DeviceSerialOrIndex(), from, state, err)
	} else {
		log.Info("Device %s: %s -> %s", n.cfg.DeviceSerialOrIndex(), from, state)
	}
	for _, hook := range n.hooks {
		hook(from, state, err)
	}
}

func (n *Node) descriptor() transport.Descriptor {
	return transport.Descriptor{
		Path:     n.cfg.Port,
		Serial:   n.cfg.Serial,
		Index:    n.cfg.Index,
		BaudRate: n.cfg.BaudRate,
	}
}

// release closes the handle and drops everything buffered
func (n *Node) release() error {
	var err error
	if n.handle != nil {
		if purger, ok := n.handle.(transport.Purger); ok {
			if perr := purger.Purge(); perr != nil {
				log.Debug("Purge before close: %s", perr)
			}
		}
		err = n.handle.Close()
		n.handle = nil
	}
	n.decoder.Reset()
	n.assembler.Discard()
	return err
}

// fault moves to Faulted. The handle stays open until Stop.
func (n *Node) fault(err error) {
	n.decoder.Reset()
	n.assembler.Discard()
	n.setState(Faulted, err)
}

func (n *Node) connectionError(what string, err error) *transport.ConnectionError {
	return &transport.ConnectionError{Device: n.cfg.DeviceSerialOrIndex(), What: what, Err: err}
}

// Start opens the device and performs the INFO and START handshake.
// It is only allowed from Disconnected.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != Disconnected {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, n.state)
	}
	n.lastErr = nil
	n.info = nil
	n.session = ""
	n.setState(Connecting, nil)

	handle, err := n.transport.Open(n.descriptor())
	if err != nil {
		var connErr *transport.ConnectionError
		if !errors.As(err, &connErr) {
			connErr = n.connectionError("open", err)
		}
		n.setState(Faulted, connErr)
		return connErr
	}
	n.handle = handle
	n.decoder.Reset()
	n.assembler.Reset()

	if err := n.handshake(ctx); err != nil {
		connErr := n.connectionError("handshake", err)
		n.fault(connErr)
		return connErr
	}
	return nil
}

func (n *Node) handshake(ctx context.Context) error {
	deadline := n.now().Add(n.cfg.HandshakeTimeout())

	if purger, ok := n.handle.(transport.Purger); ok {
		if err := purger.Purge(); err != nil {
			return err
		}
	}

	if err := n.command(layers.FrameIDInfo); err != nil {
		return err
	}
	frame, _, err := n.await(ctx, deadline, "INFO", func(f *decoder.Frame) bool {
		return f.Type == layers.TypeInfo
	})
	if err != nil {
		return err
	}
	info := *frame.Info
	if err := n.checkChannels(&info); err != nil {
		return err
	}
	n.info = &info
	log.Info("Device %s info:\n%s", n.cfg.DeviceSerialOrIndex(), info.String())

	if err := n.command(layers.FrameIDStart); err != nil {
		return err
	}
	frame, rest, err := n.await(ctx, deadline, "START acknowledgement", func(f *decoder.Frame) bool {
		return f.Type == layers.TypeAck && (!f.Ack.HasCommand || f.Ack.Command == layers.FrameIDStart)
	})
	if err != nil {
		return err
	}
	if !frame.Ack.OK() {
		return fmt.Errorf("START rejected with status 0x%02x", frame.Ack.Status)
	}

	n.origin = n.now()
	n.demux.Start(n.origin)
	n.session = newSessionID()
	n.setState(Streaming, nil)

	n.ingest(nil, rest)
	return nil
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func (n *Node) checkChannels(info *layers.DeviceInfo) error {
	// firmware which does not report channel counts is trusted to match the config
	if info.HighChannels == 0 && info.LowChannels == 0 {
		return nil
	}
	if int(info.HighChannels) != n.cfg.ChannelCountHigh || int(info.LowChannels) != n.cfg.ChannelCountLow {
		return fmt.Errorf("device reports %d/%d channels, configured %d/%d",
			info.HighChannels, info.LowChannels, n.cfg.ChannelCountHigh, n.cfg.ChannelCountLow)
	}
	return nil
}

func (n *Node) command(id layers.FrameID) error {
	raw, err := layers.Command(id)
	if err != nil {
		return err
	}
	log.Debug("Sending %s command", id)
	_, err = n.handle.Write(raw)
	return err
}

// await reads until a frame matches or the deadline passes. Frames decoded
// after the match in the same read are returned as rest.
func (n *Node) await(ctx context.Context, deadline time.Time, what string, match func(*decoder.Frame) bool) (*decoder.Frame, []*decoder.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		remaining := deadline.Sub(n.now())
		if remaining <= 0 {
			return nil, nil, fmt.Errorf("timeout waiting for %s", what)
		}
		timeout := n.cfg.ReadTimeout()
		if remaining < timeout {
			timeout = remaining
		}
		data, err := n.handle.Read(n.cfg.ReadBufferSize, timeout)
		if err != nil {
			return nil, nil, err
		}
		frames, _ := n.decoder.Decode(data)
		for i, f := range frames {
			if match(f) {
				return f, frames[i+1:], nil
			}
		}
	}
}

// ingest decodes data (if any) and passes the frames to the demultiplexer
func (n *Node) ingest(data []byte, frames []*decoder.Frame) {
	if len(data) > 0 {
		decoded, errs := n.decoder.Decode(data)
		for _, err := range errs {
			log.Warning("%s", err)
		}
		frames = append(frames, decoded...)
	}
	n.demux.Process(frames)
}

// OnTick performs one bounded read cycle and drains both channel groups.
// Outside Streaming it returns empty batches.
func (n *Node) OnTick() (hz1024, hz256 batch.Batch) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != Streaming {
		return n.assembler.Empty(demux.PortHigh), n.assembler.Empty(demux.PortLow)
	}
	n.ticks++

	budget := n.cfg.ReadBudget()
	start := n.now()
	for {
		elapsed := n.now().Sub(start)
		if elapsed >= budget {
			// the last read still returned data, the device is ahead of us
			n.budgetExhausted++
			log.Warning("Device %s: read budget of %s used up with data pending, increase the tick rate", n.cfg.DeviceSerialOrIndex(), budget)
			break
		}
		timeout := n.cfg.ReadTimeout()
		if left := budget - elapsed; left < timeout {
			timeout = left
		}
		data, err := n.handle.Read(n.cfg.ReadBufferSize, timeout)
		if err != nil {
			var ioErr *transport.IOError
			if !errors.As(err, &ioErr) {
				ioErr = &transport.IOError{Op: "read", Err: err}
			}
			n.fault(ioErr)
			return n.assembler.Empty(demux.PortHigh), n.assembler.Empty(demux.PortLow)
		}
		if len(data) == 0 {
			break
		}
		n.ingest(data, nil)
	}
	return n.assembler.Drain(demux.PortHigh), n.assembler.Drain(demux.PortLow)
}

// Stop sends STOP when streaming, then closes the device. Stopping a
// disconnected node is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == Disconnected {
		return nil
	}
	if n.state == Streaming {
		if err := n.command(layers.FrameIDStop); err != nil {
			log.Warning("Sending STOP to %s: %s", n.cfg.DeviceSerialOrIndex(), err)
		}
	}
	err := n.release()
	n.setState(Disconnected, nil)
	return err
}

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}
