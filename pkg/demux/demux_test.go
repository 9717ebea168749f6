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

package demux

import (
	"testing"
	"time"

	"jinr.ru/greenlab/go-pl4/pkg/decoder"
	"jinr.ru/greenlab/go-pl4/pkg/layers"
)

type recorder struct {
	samples map[string][]Sample
}

func (r *recorder) Append(port string, samples ...Sample) {
	if r.samples == nil {
		r.samples = map[string][]Sample{}
	}
	r.samples[port] = append(r.samples[port], samples...)
}

func frame(t layers.FrameType, seq uint16, channels int) *decoder.Frame {
	payload := make([]int32, channels)
	for i := range payload {
		payload[i] = int32(seq)*10 + int32(i)
	}
	return &decoder.Frame{Type: t, Seq: seq, Payload: payload, ChecksumValid: true}
}

func newDemux() (*Demux, *recorder, time.Time) {
	rec := &recorder{}
	d := New(HighGroup(12), LowGroup(4), rec)
	origin := time.Unix(1600000000, 0)
	d.Start(origin)
	return d, rec, origin
}

func TestTimestampSpacing(t *testing.T) {
	d, rec, origin := newDemux()
	var frames []*decoder.Frame
	for i := 0; i < 2048; i++ {
		frames = append(frames, frame(layers.TypeHighRate, uint16(i), 12))
		if i%4 == 0 {
			frames = append(frames, frame(layers.TypeLowRate, uint16(i/4), 4))
		}
	}
	if w := d.Process(frames); len(w) != 0 {
		t.Fatalf("unexpected gaps: %v", w)
	}

	tests := []struct {
		port     string
		channels int
		frames   int
		period   time.Duration
	}{
		{PortHigh, 12, 2048, time.Second / 1024},
		{PortLow, 4, 512, time.Second / 256},
	}
	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			samples := rec.samples[tt.port]
			if len(samples) != tt.frames*tt.channels {
				t.Fatalf("got %d samples, want %d", len(samples), tt.frames*tt.channels)
			}
			if !samples[0].Timestamp.Equal(origin) {
				t.Errorf("first timestamp = %v, want origin", samples[0].Timestamp)
			}
			for ch := 0; ch < tt.channels; ch++ {
				prev := samples[ch]
				for i := ch + tt.channels; i < len(samples); i += tt.channels {
					s := samples[i]
					if s.Channel != ch {
						t.Fatalf("sample %d channel = %d, want %d", i, s.Channel, ch)
					}
					step := s.Timestamp.Sub(prev.Timestamp)
					if step <= 0 {
						t.Fatalf("timestamps not strictly increasing on channel %d", ch)
					}
					if diff := step - tt.period; diff < -time.Nanosecond || diff > time.Nanosecond {
						t.Fatalf("step %v, want %v within 1ns", step, tt.period)
					}
					prev = s
				}
			}
			last := samples[len(samples)-1].Timestamp
			if want := origin.Add(time.Duration(tt.frames-1) * time.Second / time.Duration(tt.frames/2)); !last.Equal(want) {
				t.Errorf("last timestamp = %v, want %v", last, want)
			}
		})
	}
}

func TestSequenceGap(t *testing.T) {
	d, rec, origin := newDemux()
	warnings := d.Process([]*decoder.Frame{
		frame(layers.TypeLowRate, 10, 4),
		frame(layers.TypeLowRate, 11, 4),
		frame(layers.TypeLowRate, 14, 4),
	})
	if len(warnings) != 1 || warnings[0].Missing != 2 || warnings[0].Expected != 12 || warnings[0].Got != 14 {
		t.Fatalf("warnings = %v", warnings)
	}
	samples := rec.samples[PortLow]
	if len(samples) != 12 {
		t.Fatalf("got %d samples, gap frames must not be synthesised", len(samples))
	}
	if want := origin.Add(4 * time.Second / 256); !samples[8].Timestamp.Equal(want) {
		t.Errorf("timestamp after gap = %v, want %v", samples[8].Timestamp, want)
	}
	stats := d.Stats().Low
	if stats.Gaps != 2 || stats.GapEvents != 1 || stats.Frames != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSequenceWrap(t *testing.T) {
	d, rec, origin := newDemux()
	warnings := d.Process([]*decoder.Frame{
		frame(layers.TypeHighRate, 0xFFFE, 12),
		frame(layers.TypeHighRate, 0xFFFF, 12),
		frame(layers.TypeHighRate, 0x0000, 12),
		frame(layers.TypeHighRate, 0x0001, 12),
	})
	if len(warnings) != 0 {
		t.Fatalf("wraparound reported as gap: %v", warnings)
	}
	samples := rec.samples[PortHigh]
	if want := origin.Add(3 * time.Second / 1024); !samples[36].Timestamp.Equal(want) {
		t.Errorf("timestamp after wrap = %v, want %v", samples[36].Timestamp, want)
	}
}

func TestStaleAndForeignFrames(t *testing.T) {
	d, rec, _ := newDemux()
	d.Process([]*decoder.Frame{
		frame(layers.TypeHighRate, 100, 12),
		frame(layers.TypeHighRate, 101, 12),
		frame(layers.TypeHighRate, 101, 12),
		frame(layers.TypeHighRate, 99, 12),
		{Type: layers.TypeStatus, Body: []byte{1, 2}},
		{Type: layers.TypeUnknown},
		{Type: layers.TypeAck},
		frame(layers.TypeHighRate, 102, 12),
	})
	stats := d.Stats()
	if stats.High.StaleFrames != 2 || stats.High.Frames != 3 || stats.High.Resyncs != 0 {
		t.Errorf("high stats = %+v", stats.High)
	}
	if stats.Discarded != 3 {
		t.Errorf("discarded = %d, want 3", stats.Discarded)
	}
	if len(rec.samples[PortHigh]) != 36 || len(rec.samples[PortLow]) != 0 {
		t.Errorf("samples high %d low %d", len(rec.samples[PortHigh]), len(rec.samples[PortLow]))
	}
}

func TestCounterRestart(t *testing.T) {
	tests := []struct {
		name    string
		before  int
		restart []uint16
		stale   uint64
		resyncs uint64
	}{
		{"far behind", 10000, seqRange(0, 5120), 0, 1},
		{"just behind", 20, seqRange(10, 40), StaleResyncAfter - 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec, _ := newDemux()
			var frames []*decoder.Frame
			for i := 0; i < tt.before; i++ {
				frames = append(frames, frame(layers.TypeHighRate, uint16(i), 12))
			}
			for _, seq := range tt.restart {
				frames = append(frames, frame(layers.TypeHighRate, seq, 12))
			}
			warnings := d.Process(frames)

			stats := d.Stats().High
			wantFrames := uint64(tt.before+len(tt.restart)) - tt.stale
			if stats.Frames != wantFrames || stats.StaleFrames != tt.stale || stats.Resyncs != tt.resyncs {
				t.Fatalf("stats = %+v, want %d frames", stats, wantFrames)
			}
			if stats.Gaps != 0 {
				t.Errorf("restart counted as %d missing frames", stats.Gaps)
			}
			if len(warnings) != 1 || !warnings[0].Resync {
				t.Fatalf("warnings = %v", warnings)
			}

			samples := rec.samples[PortHigh]
			for i := 12; i < len(samples); i += 12 {
				if !samples[i].Timestamp.After(samples[i-12].Timestamp) {
					t.Fatalf("timestamp of frame %d does not advance", i/12)
				}
			}
		})
	}
}

func seqRange(from, to int) []uint16 {
	var seqs []uint16
	for i := from; i < to; i++ {
		seqs = append(seqs, uint16(i))
	}
	return seqs
}

func TestStartResetsIndex(t *testing.T) {
	d, rec, _ := newDemux()
	d.Process([]*decoder.Frame{frame(layers.TypeHighRate, 7, 12), frame(layers.TypeHighRate, 8, 12)})
	origin := time.Unix(1700000000, 0)
	d.Start(origin)
	rec.samples = nil
	d.Process([]*decoder.Frame{frame(layers.TypeHighRate, 3, 12)})
	if got := rec.samples[PortHigh][0].Timestamp; !got.Equal(origin) {
		t.Errorf("first timestamp of new session = %v, want %v", got, origin)
	}
}
