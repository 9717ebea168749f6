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

package batch

import (
	"testing"
	"time"

	"jinr.ru/greenlab/go-pl4/pkg/demux"
)

func samples(n int) []demux.Sample {
	out := make([]demux.Sample, n)
	for i := range out {
		out[i] = demux.Sample{Channel: i % 4, Value: int32(i), Timestamp: time.Unix(0, int64(i))}
	}
	return out
}

func TestDrain(t *testing.T) {
	a := NewAssembler(demux.HighGroup(12), demux.LowGroup(4))
	a.Append(demux.PortLow, samples(8)...)
	a.Append(demux.PortLow, samples(4)...)
	a.Append("unknown", samples(4)...)

	b := a.Drain(demux.PortLow)
	if len(b.Samples) != 12 || b.Seq != 0 || b.Frames() != 3 {
		t.Fatalf("first drain = seq %d, %d samples", b.Seq, len(b.Samples))
	}
	if b.Rate != demux.RateLow || b.Unit != demux.UnitLow || b.Channels != 4 {
		t.Errorf("batch metadata = %+v", b)
	}

	again := a.Drain(demux.PortLow)
	if !again.Empty() {
		t.Errorf("second drain returned %d samples", len(again.Samples))
	}
	if again.Seq != 1 {
		t.Errorf("second drain seq = %d, want 1", again.Seq)
	}
	if a.Len(demux.PortHigh) != 0 {
		t.Errorf("high rate buffer touched")
	}
}

func TestSeqPerPort(t *testing.T) {
	a := NewAssembler(demux.HighGroup(12), demux.LowGroup(4))
	for i := uint64(0); i < 5; i++ {
		if b := a.Drain(demux.PortHigh); b.Seq != i {
			t.Fatalf("high drain %d seq = %d", i, b.Seq)
		}
	}
	if b := a.Drain(demux.PortLow); b.Seq != 0 {
		t.Errorf("low seq = %d, ports must count independently", b.Seq)
	}
	if b := a.Empty(demux.PortHigh); b.Seq != 0 || b.Port != demux.PortHigh {
		t.Errorf("Empty() = %+v", b)
	}
	if b := a.Drain(demux.PortHigh); b.Seq != 5 {
		t.Errorf("Empty() consumed a sequence id, next seq = %d", b.Seq)
	}
}

func TestDiscardAndReset(t *testing.T) {
	a := NewAssembler(demux.HighGroup(12), demux.LowGroup(4))
	a.Append(demux.PortHigh, samples(24)...)
	a.Drain(demux.PortHigh)
	a.Append(demux.PortHigh, samples(24)...)
	a.Discard()
	b := a.Drain(demux.PortHigh)
	if !b.Empty() || b.Seq != 1 {
		t.Errorf("after Discard() drain = seq %d, %d samples", b.Seq, len(b.Samples))
	}
	a.Reset()
	if b := a.Drain(demux.PortHigh); b.Seq != 0 {
		t.Errorf("after Reset() seq = %d", b.Seq)
	}
}
