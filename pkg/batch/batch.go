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

// Package batch accumulates demultiplexed samples per output port until
// the next tick drains them.
package batch

import (
	"jinr.ru/greenlab/go-pl4/pkg/demux"
)

// Batch is what one tick hands off on one port
type Batch struct {
	Port     string         `cbor:"1,keyasint" json:"port"`
	Seq      uint64         `cbor:"2,keyasint" json:"seq"`
	Rate     float64        `cbor:"3,keyasint" json:"rate"`
	Channels int            `cbor:"4,keyasint" json:"channels"`
	Scale    float64        `cbor:"5,keyasint" json:"scale"`
	Unit     string         `cbor:"6,keyasint" json:"unit"`
	Samples  []demux.Sample `cbor:"7,keyasint" json:"samples"`
}

func (b Batch) Empty() bool {
	return len(b.Samples) == 0
}

// Frames is the number of sample frames carried by the batch
func (b Batch) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

type buffer struct {
	group   demux.Group
	samples []demux.Sample
	seq     uint64
}

type Assembler struct {
	buffers map[string]*buffer
}

func NewAssembler(groups ...demux.Group) *Assembler {
	a := &Assembler{buffers: map[string]*buffer{}}
	for _, g := range groups {
		a.buffers[g.Port] = &buffer{group: g}
	}
	return a
}

// Append adds samples to the buffer of port, unknown ports are ignored
func (a *Assembler) Append(port string, samples ...demux.Sample) {
	buf, ok := a.buffers[port]
	if !ok {
		return
	}
	buf.samples = append(buf.samples, samples...)
}

// Len is the number of samples buffered for port
func (a *Assembler) Len(port string) int {
	if buf, ok := a.buffers[port]; ok {
		return len(buf.samples)
	}
	return 0
}

// Drain hands off everything buffered for port. Every call consumes
// the next sequence id of the port, empty batches included.
func (a *Assembler) Drain(port string) Batch {
	buf, ok := a.buffers[port]
	if !ok {
		return Batch{Port: port}
	}
	b := a.empty(buf)
	b.Samples = buf.samples
	buf.samples = nil
	buf.seq++
	return b
}

// Empty returns a batch without samples and without consuming a sequence id
func (a *Assembler) Empty(port string) Batch {
	buf, ok := a.buffers[port]
	if !ok {
		return Batch{Port: port}
	}
	b := a.empty(buf)
	b.Seq = 0
	return b
}

func (a *Assembler) empty(buf *buffer) Batch {
	return Batch{
		Port:     buf.group.Port,
		Seq:      buf.seq,
		Rate:     buf.group.Rate,
		Channels: buf.group.Channels,
		Scale:    buf.group.Scale,
		Unit:     buf.group.Unit,
	}
}

// Discard drops buffered samples, sequence ids continue
func (a *Assembler) Discard() {
	for _, buf := range a.buffers {
		buf.samples = nil
	}
}

// Reset drops buffered samples and restarts sequence ids at zero
func (a *Assembler) Reset() {
	for _, buf := range a.buffers {
		buf.samples = nil
		buf.seq = 0
	}
}
