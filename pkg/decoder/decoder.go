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

// Package decoder turns the raw byte stream of a PL4 into frames.
//
// Bytes are accumulated in a residual buffer across calls, so frames split
// between two transport reads are decoded once the rest arrives.
package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-pl4/pkg/layers"
	"jinr.ru/greenlab/go-pl4/pkg/log"
)

var marker = []byte{layers.FrameMarker, layers.FrameMarker}

// Layout is the expected channel count of each sample frame type
type Layout struct {
	HighChannels int
	LowChannels  int
}

func (l Layout) channels(t layers.FrameType) int {
	switch t {
	case layers.TypeHighRate:
		return l.HighChannels
	case layers.TypeLowRate:
		return l.LowChannels
	}
	return 0
}

type Frame struct {
	Type layers.FrameType
	ID   layers.FrameID
	// Seq and Payload are set for sample frames only
	Seq           uint16
	Payload       []int32
	ChecksumValid bool
	// Body is the raw payload of control and unknown frames
	Body []byte
	Ack  *layers.AckLayer
	Info *layers.DeviceInfo
}

type Stats struct {
	Frames         uint64 `json:"frames"`
	DecodeErrors   uint64 `json:"decodeErrors"`
	ChecksumErrors uint64 `json:"checksumErrors"`
	SkippedBytes   uint64 `json:"skippedBytes"`
}

type Decoder struct {
	layout Layout
	buf    []byte
	stats  Stats
}

func New(layout Layout) *Decoder {
	return &Decoder{layout: layout}
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Residual is the number of buffered bytes not decoded yet
func (d *Decoder) Residual() int {
	return len(d.buf)
}

// Reset drops buffered bytes, counters are kept
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Decode appends data to the residual buffer and extracts every complete frame
func (d *Decoder) Decode(data []byte) ([]*Frame, []error) {
	d.buf = append(d.buf, data...)

	var frames []*Frame
	var errs []error
	pos := 0
	for pos < len(d.buf) {
		rest := d.buf[pos:]
		idx := bytes.Index(rest, marker)
		if idx < 0 {
			// a trailing marker byte may start the next frame
			skip := len(rest)
			if rest[len(rest)-1] == layers.FrameMarker {
				skip--
			}
			d.stats.SkippedBytes += uint64(skip)
			pos += skip
			break
		}
		if idx > 0 {
			d.stats.SkippedBytes += uint64(idx)
			pos += idx
			rest = rest[idx:]
		}
		if len(rest) < layers.FrameHeaderSize {
			break
		}
		if rest[2] == layers.FrameMarker {
			// AA AA AA: the first byte is stray when a frame starts right after it
			valid, incomplete := frameAt(rest[1:])
			if incomplete {
				break
			}
			if valid {
				d.stats.SkippedBytes++
				pos++
				continue
			}
		}
		size := int(binary.BigEndian.Uint16(rest[4:6]))
		if size < layers.FrameMinSize || size > layers.FrameMaxSize {
			errs = append(errs, d.fail(ReasonSize, rest, layers.ErrFrameSize{Size: size}))
			pos++
			continue
		}
		if len(rest) < size {
			break
		}

		frame, err := d.decodeFrame(rest[:size])
		if err != nil {
			errs = append(errs, err)
			var decErr *DecodeError
			if errors.As(err, &decErr) && decErr.Reason == ReasonChecksum {
				// the size field is not trusted, rescan right after the marker
				pos++
				continue
			}
		} else {
			d.stats.Frames++
			frames = append(frames, frame)
		}
		pos += size
	}

	n := copy(d.buf, d.buf[pos:])
	d.buf = d.buf[:n]
	return frames, errs
}

// frameAt reports whether b starts with a complete frame of valid size
// and checksum, or whether more bytes are needed to tell
func frameAt(b []byte) (valid, incomplete bool) {
	if len(b) < layers.FrameHeaderSize {
		return false, true
	}
	size := int(binary.BigEndian.Uint16(b[4:6]))
	if size < layers.FrameMinSize || size > layers.FrameMaxSize {
		return false, false
	}
	if len(b) < size {
		return false, true
	}
	sum := binary.BigEndian.Uint16(b[size-layers.FrameChecksumSize : size])
	return layers.Checksum(b[:size-layers.FrameChecksumSize]) == sum, false
}

func (d *Decoder) fail(reason Reason, raw []byte, err error) error {
	d.stats.DecodeErrors++
	if reason == ReasonChecksum {
		d.stats.ChecksumErrors++
	}
	decErr := &DecodeError{Reason: reason, ID: layers.FrameID(binary.BigEndian.Uint16(raw[2:4])), Err: err}
	log.Debug("%s", decErr)
	return decErr
}

func (d *Decoder) decodeFrame(raw []byte) (*Frame, error) {
	packet := gopacket.NewPacket(raw, layers.FrameLayerType, gopacket.Default)
	if el := packet.ErrorLayer(); el != nil {
		var csErr layers.ErrChecksum
		if errors.As(el.Error(), &csErr) {
			return nil, d.fail(ReasonChecksum, raw, el.Error())
		}
		return nil, d.fail(ReasonPayload, raw, el.Error())
	}
	fl, ok := packet.Layer(layers.FrameLayerType).(*layers.FrameLayer)
	if !ok {
		return nil, d.fail(ReasonPayload, raw, errors.New("no frame layer"))
	}

	frame := &Frame{
		Type:          fl.ID.Type(),
		ID:            fl.ID,
		ChecksumValid: true,
		Body:          fl.LayerPayload(),
	}
	switch frame.Type {
	case layers.TypeHighRate, layers.TypeLowRate:
		samples, ok := packet.Layer(layers.SamplesLayerType).(*layers.SamplesLayer)
		if !ok {
			return nil, d.fail(ReasonPayload, raw, errors.New("no samples layer"))
		}
		if want := d.layout.channels(frame.Type); len(samples.Values) != want {
			return nil, d.fail(ReasonLayout, raw, ErrLayout{Type: frame.Type, Have: len(samples.Values), Want: want})
		}
		frame.Seq = samples.Seq
		frame.Payload = samples.Values
		frame.Body = nil
	case layers.TypeAck:
		if ack, ok := packet.Layer(layers.AckLayerType).(*layers.AckLayer); ok {
			frame.Ack = ack
		} else {
			return nil, d.fail(ReasonPayload, raw, errors.New("empty ack"))
		}
	case layers.TypeInfo:
		if info, ok := packet.Layer(layers.InfoLayerType).(*layers.InfoLayer); ok {
			frame.Info = &info.DeviceInfo
		} else {
			return nil, d.fail(ReasonPayload, raw, errors.New("empty info"))
		}
	}
	return frame, nil
}
