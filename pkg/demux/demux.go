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

// Package demux splits decoded frames into the two PL4 channel groups and
// assigns every sample its nominal acquisition instant.
package demux

import (
	"fmt"
	"time"

	"jinr.ru/greenlab/go-pl4/pkg/decoder"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
	"jinr.ru/greenlab/go-pl4/pkg/log"
)

const (
	PortHigh = "1024hz"
	PortLow  = "256hz"

	RateHigh = 1024.0
	RateLow  = 256.0

	// LSB weights of the device ADCs
	ScaleHigh = -0.01184481006
	UnitHigh  = "uV"
	ScaleLow  = -0.000244140625
	UnitLow   = "mV"

	// sequence deltas at or above this point backwards
	backwardDelta = 0x8000
	// a frame at most StaleWindow seqs behind the expected one is a
	// duplicate or late frame and is dropped. Further back the device
	// counter restarted and the group resyncs on it.
	StaleWindow = 16
	// this many stale frames in a row also resync the group
	StaleResyncAfter = 8
)

// Group describes one independently clocked set of channels
type Group struct {
	Type     layers.FrameType `json:"-"`
	Port     string           `json:"port"`
	Channels int              `json:"channels"`
	Rate     float64          `json:"rate"`
	Scale    float64          `json:"scale"`
	Unit     string           `json:"unit"`
}

func HighGroup(channels int) Group {
	return Group{Type: layers.TypeHighRate, Port: PortHigh, Channels: channels, Rate: RateHigh, Scale: ScaleHigh, Unit: UnitHigh}
}

func LowGroup(channels int) Group {
	return Group{Type: layers.TypeLowRate, Port: PortLow, Channels: channels, Rate: RateLow, Scale: ScaleLow, Unit: UnitLow}
}

// Sample is one channel value in device units
type Sample struct {
	Channel   int       `cbor:"1,keyasint" json:"channel"`
	Value     int32     `cbor:"2,keyasint" json:"value"`
	Timestamp time.Time `cbor:"3,keyasint" json:"timestamp"`
}

// Appender receives the samples of every accepted frame
type Appender interface {
	Append(port string, samples ...Sample)
}

// GapWarning reports frames missing from a group. Nothing is synthesised
// for them. Resync is set when the sequence counter jumped backwards and
// the group continued from the new value.
type GapWarning struct {
	Port     string
	Expected uint16
	Got      uint16
	Missing  int
	Resync   bool
}

func (w *GapWarning) Error() string {
	if w.Resync {
		return fmt.Sprintf("Sequence restart on %s: expected %d, got %d, resynchronised", w.Port, w.Expected, w.Got)
	}
	return fmt.Sprintf("Sequence gap on %s: expected %d, got %d, %d frames missing", w.Port, w.Expected, w.Got, w.Missing)
}

type GroupStats struct {
	Frames  uint64 `json:"frames"`
	Samples uint64 `json:"samples"`
	// Gaps counts missing frames, GapEvents the discontinuities they came in
	Gaps        uint64 `json:"gaps"`
	GapEvents   uint64 `json:"gapEvents"`
	StaleFrames uint64 `json:"staleFrames"`
	Resyncs     uint64 `json:"resyncs"`
}

type Stats struct {
	High      GroupStats `json:"high"`
	Low       GroupStats `json:"low"`
	Discarded uint64     `json:"discarded"`
}

type groupState struct {
	Group
	started  bool
	expected uint16
	next     int64
	staleRun int
	stats    GroupStats
}

// offset of frame index from the session origin, exact for integer rates
func (g *groupState) offset(index int64) time.Duration {
	r := int64(g.Rate)
	if r > 0 && float64(r) == g.Rate {
		return time.Duration(index/r)*time.Second + time.Duration(index%r*int64(time.Second)/r)
	}
	return time.Duration(float64(index) * float64(time.Second) / g.Rate)
}

type Demux struct {
	origin    time.Time
	high      *groupState
	low       *groupState
	out       Appender
	discarded uint64
}

func New(high, low Group, out Appender) *Demux {
	return &Demux{
		high: &groupState{Group: high},
		low:  &groupState{Group: low},
		out:  out,
	}
}

func (d *Demux) Groups() (Group, Group) {
	return d.high.Group, d.low.Group
}

// Start begins a session: the next frame of each group gets index 0 at origin
func (d *Demux) Start(origin time.Time) {
	d.origin = origin
	for _, g := range []*groupState{d.high, d.low} {
		g.started = false
		g.expected = 0
		g.next = 0
		g.staleRun = 0
	}
}

func (d *Demux) Stats() Stats {
	return Stats{High: d.high.stats, Low: d.low.stats, Discarded: d.discarded}
}

// Process hands the samples of sample frames to the appender and
// returns a warning for every sequence gap
func (d *Demux) Process(frames []*decoder.Frame) []*GapWarning {
	var warnings []*GapWarning
	for _, frame := range frames {
		var g *groupState
		switch frame.Type {
		case layers.TypeHighRate:
			g = d.high
		case layers.TypeLowRate:
			g = d.low
		default:
			d.discarded++
			continue
		}
		if w := d.accept(g, frame); w != nil {
			log.Warning("%s", w)
			warnings = append(warnings, w)
		}
	}
	return warnings
}

func (d *Demux) accept(g *groupState, frame *decoder.Frame) *GapWarning {
	var warning *GapWarning
	index := g.next
	if g.started {
		delta := frame.Seq - g.expected
		if delta >= backwardDelta {
			back := int(0x10000 - int(delta))
			if back <= StaleWindow && g.staleRun+1 < StaleResyncAfter {
				g.staleRun++
				g.stats.StaleFrames++
				log.Debug("Stale frame on %s: seq %d, expected %d", g.Port, frame.Seq, g.expected)
				return nil
			}
			// index stays g.next so time keeps moving forward
			g.stats.Resyncs++
			warning = &GapWarning{Port: g.Port, Expected: g.expected, Got: frame.Seq, Resync: true}
		} else if delta > 0 {
			g.stats.Gaps += uint64(delta)
			g.stats.GapEvents++
			warning = &GapWarning{Port: g.Port, Expected: g.expected, Got: frame.Seq, Missing: int(delta)}
			index += int64(delta)
		}
	}
	g.started = true
	g.staleRun = 0
	g.expected = frame.Seq + 1
	g.next = index + 1

	ts := d.origin.Add(g.offset(index))
	samples := make([]Sample, len(frame.Payload))
	for ch, v := range frame.Payload {
		samples[ch] = Sample{Channel: ch, Value: v, Timestamp: ts}
	}
	g.stats.Frames++
	g.stats.Samples += uint64(len(samples))
	d.out.Append(g.Port, samples...)
	return warning
}
