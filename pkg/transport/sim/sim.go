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

// Package sim is a software PL4: it answers host commands and streams
// sample frames paced by a clock, behind the same Transport interface
// as the serial device.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-pl4/pkg/layers"
	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/transport"
)

const (
	PortName = "sim://pl4"

	HighRate = 1024
	LowRate  = 256

	// outputLimit bounds pending output, older bytes are dropped like a full FIFO
	outputLimit = 1 << 20
)

// Signal returns the value of channel ch in the n-th frame of a stream
type Signal func(id layers.FrameID, n uint64, ch int) int32

// FrameFilter decides per frame whether to apply a fault
type FrameFilter func(id layers.FrameID, n uint64) bool

type Option func(d *Device)

func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(d *Device) {
		d.now = now
		d.sleep = sleep
	}
}

func WithInfo(info layers.DeviceInfo) Option {
	return func(d *Device) {
		d.info = info
	}
}

func WithChannels(high, low int) Option {
	return func(d *Device) {
		d.highChannels = high
		d.lowChannels = low
	}
}

func WithSignal(s Signal) Option {
	return func(d *Device) {
		d.signal = s
	}
}

// WithDrop makes the device skip frames, leaving sequence gaps
func WithDrop(f FrameFilter) Option {
	return func(d *Device) {
		d.drop = f
	}
}

// WithCorrupt makes the device send frames with a broken checksum
func WithCorrupt(f FrameFilter) Option {
	return func(d *Device) {
		d.corrupt = f
	}
}

// WithSilent makes the device ignore the given commands
func WithSilent(ids ...layers.FrameID) Option {
	return func(d *Device) {
		for _, id := range ids {
			d.silent[id] = true
		}
	}
}

// WithStartStatus sets the status byte acknowledging START
func WithStartStatus(status uint8) Option {
	return func(d *Device) {
		d.startStatus = status
	}
}

// DefaultSignal is a slow sine per channel, amplitude growing with the channel number
func DefaultSignal(id layers.FrameID, n uint64, ch int) int32 {
	rate := float64(HighRate)
	if id == layers.FrameIDLowRate {
		rate = LowRate
	}
	phase := 2 * math.Pi * float64(n) / rate
	return int32(float64((ch+1)*1000) * math.Sin(phase*float64(ch+1)))
}

type Device struct {
	mu sync.Mutex

	info         layers.DeviceInfo
	highChannels int
	lowChannels  int
	startStatus  uint8
	signal       Signal
	drop         FrameFilter
	corrupt      FrameFilter
	silent       map[layers.FrameID]bool

	now   func() time.Time
	sleep func(time.Duration)

	open      bool
	streaming bool
	t0        time.Time
	highSent  uint64
	lowSent   uint64
	in        []byte
	out       []byte
	commands  []layers.FrameID
}

func New(opts ...Option) *Device {
	d := &Device{
		info: layers.DeviceInfo{
			DeviceID:        0x0004,
			SoftwareVersion: 0x0102,
			HardwareVersion: 0x0001,
			SerialNumber:    1,
		},
		highChannels: 12,
		lowChannels:  4,
		startStatus:  layers.AckStatusOK,
		signal:       DefaultSignal,
		silent:       map[layers.FrameID]bool{},
		now:          time.Now,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.info.HighChannels == 0 && d.info.LowChannels == 0 {
		d.info.HighChannels = uint8(d.highChannels)
		d.info.LowChannels = uint8(d.lowChannels)
	}
	return d
}

func (d *Device) List() ([]transport.Port, error) {
	return []transport.Port{{Path: PortName, SerialNumber: "SIM", Product: "PL4 simulator"}}, nil
}

// Open returns the device itself, only one handle may be open at a time
func (d *Device) Open(desc transport.Descriptor) (transport.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil, &transport.ConnectionError{Device: PortName, What: "device busy"}
	}
	d.open = true
	d.streaming = false
	d.in = nil
	d.out = nil
	log.Debug("Simulated PL4 opened for %s", desc)
	return d, nil
}

// Commands returns the command ids received so far
func (d *Device) Commands() []layers.FrameID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]layers.FrameID(nil), d.commands...)
}

func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

func (d *Device) Write(data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return 0, &transport.IOError{Op: "write " + PortName, Err: transport.ErrClosed}
	}
	d.in = append(d.in, data...)
	d.parseCommands()
	return len(data), nil
}

func (d *Device) parseCommands() {
	for len(d.in) >= layers.FrameMinSize {
		if d.in[0] != layers.FrameMarker || d.in[1] != layers.FrameMarker {
			d.in = d.in[1:]
			continue
		}
		frame := &layers.FrameLayer{}
		err := frame.DecodeFromBytes(d.in, gopacket.NilDecodeFeedback)
		if _, ok := err.(layers.ErrFrameTruncated); ok {
			return
		}
		if err != nil {
			d.in = d.in[1:]
			continue
		}
		d.in = d.in[frame.Size:]
		d.command(frame.ID)
	}
}

func (d *Device) command(id layers.FrameID) {
	d.commands = append(d.commands, id)
	if d.silent[id] {
		return
	}
	switch id {
	case layers.FrameIDInfo:
		raw, _ := layers.InfoFrame(d.info)
		d.emit(raw)
	case layers.FrameIDStart:
		raw, _ := layers.AckFrame(d.startStatus, id)
		d.emit(raw)
		if d.startStatus == layers.AckStatusOK {
			d.streaming = true
			d.t0 = d.now()
			d.highSent = 0
			d.lowSent = 0
		}
	case layers.FrameIDStop:
		d.streaming = false
		raw, _ := layers.AckFrame(layers.AckStatusOK, id)
		d.emit(raw)
	default:
		raw, _ := layers.AckFrame(0x01, id)
		d.emit(raw)
	}
}

func (d *Device) emit(raw []byte) {
	d.out = append(d.out, raw...)
	if over := len(d.out) - outputLimit; over > 0 {
		d.out = d.out[over:]
	}
}

// due is the number of frames sent at rate within elapsed, frame n is due at n/rate
func due(elapsed time.Duration, rate int64) uint64 {
	if elapsed < 0 {
		return 0
	}
	return uint64(int64(elapsed)*rate/int64(time.Second)) + 1
}

// instant of frame n at rate, rounded up to the nanosecond
func instant(n uint64, rate int64) time.Duration {
	ns := int64(n) * int64(time.Second)
	return time.Duration((ns + rate - 1) / rate)
}

func (d *Device) frame(id layers.FrameID, n uint64, channels int) {
	if d.drop != nil && d.drop(id, n) {
		return
	}
	values := make([]int32, channels)
	for ch := range values {
		v := d.signal(id, n, ch)
		if v > layers.SampleMax {
			v = layers.SampleMax
		} else if v < layers.SampleMin {
			v = layers.SampleMin
		}
		values[ch] = v
	}
	raw, err := layers.SamplesFrame(id, uint16(n), values)
	if err != nil {
		log.Error("Simulated frame: %s", err)
		return
	}
	if d.corrupt != nil && d.corrupt(id, n) {
		raw[len(raw)-1] ^= 0xFF
	}
	d.emit(raw)
}

// pump generates every frame due at the current time, interleaved by frame instant
func (d *Device) pump() {
	if !d.streaming {
		return
	}
	elapsed := d.now().Sub(d.t0)
	highDue := due(elapsed, HighRate)
	lowDue := due(elapsed, LowRate)
	for d.highSent < highDue || d.lowSent < lowDue {
		highAt := instant(d.highSent, HighRate)
		lowAt := instant(d.lowSent, LowRate)
		if d.highSent < highDue && (d.lowSent >= lowDue || highAt <= lowAt) {
			d.frame(layers.FrameIDHighRate, d.highSent, d.highChannels)
			d.highSent++
		} else {
			d.frame(layers.FrameIDLowRate, d.lowSent, d.lowChannels)
			d.lowSent++
		}
	}
}

// untilNext is the wait until the next high rate frame is due
func (d *Device) untilNext() time.Duration {
	return d.t0.Add(instant(d.highSent, HighRate)).Sub(d.now())
}

func (d *Device) Read(max int, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, &transport.IOError{Op: "read " + PortName, Err: transport.ErrClosed}
	}
	d.pump()
	if len(d.out) == 0 && timeout > 0 {
		wait := timeout
		if d.streaming {
			if next := d.untilNext(); next < wait {
				wait = next
			}
		}
		if wait > 0 {
			d.mu.Unlock()
			d.sleep(wait)
			d.mu.Lock()
			if !d.open {
				return nil, &transport.IOError{Op: "read " + PortName, Err: transport.ErrClosed}
			}
		}
		d.pump()
	}
	n := len(d.out)
	if n > max {
		n = max
	}
	data := make([]byte, n)
	copy(data, d.out[:n])
	d.out = d.out[n:]
	return data, nil
}

func (d *Device) Purge() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return &transport.IOError{Op: "purge " + PortName, Err: transport.ErrClosed}
	}
	d.pump()
	d.out = nil
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.streaming = false
	d.in = nil
	d.out = nil
	return nil
}
