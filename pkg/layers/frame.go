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

package layers

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func init() {
	initUnknownFrameIDs()
	initActualFrameIDs()
}

const (
	// FrameLayerNum identifies the layer
	FrameLayerNum = 2000
	// FrameMarker is the byte repeated twice at the start of every frame
	FrameMarker = 0xAA
	// FrameSync is the two marker bytes as one big endian word
	FrameSync = 0xAAAA
	// FrameHeaderSize is sync (2) + id (2) + size (2)
	FrameHeaderSize = 6
	// FrameChecksumSize is the trailing 16 bit checksum
	FrameChecksumSize = 2
	// FrameMinSize is a frame with an empty payload
	FrameMinSize = FrameHeaderSize + FrameChecksumSize
	// FrameMaxSize bounds the size field, larger values mean we locked on a false marker
	FrameMaxSize = 1024
)

type FrameID uint16

const (
	FrameIDAck      FrameID = 0x0000
	FrameIDInfo     FrameID = 0x0003
	FrameIDStart    FrameID = 0x000B
	FrameIDStop     FrameID = 0x000C
	FrameIDHighRate FrameID = 0x0010
	FrameIDLowRate  FrameID = 0x0011
	FrameIDStatus   FrameID = 0x0012
)

// FrameType is the logical class of a frame
type FrameType uint8

const (
	TypeUnknown FrameType = iota
	TypeHighRate
	TypeLowRate
	TypeStatus
	TypeAck
	TypeInfo
)

func (t FrameType) String() string {
	switch t {
	case TypeHighRate:
		return "HighRate"
	case TypeLowRate:
		return "LowRate"
	case TypeStatus:
		return "Status"
	case TypeAck:
		return "Ack"
	case TypeInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// IsSamples reports whether frames of this type carry channel samples
func (t FrameType) IsSamples() bool {
	return t == TypeHighRate || t == TypeLowRate
}

var frameTypes = map[FrameID]FrameType{
	FrameIDAck:      TypeAck,
	FrameIDInfo:     TypeInfo,
	FrameIDHighRate: TypeHighRate,
	FrameIDLowRate:  TypeLowRate,
	FrameIDStatus:   TypeStatus,
}

// Type maps the frame id to its logical class
func (id FrameID) Type() FrameType {
	if t, ok := frameTypes[id]; ok {
		return t
	}
	return TypeUnknown
}

var FrameMetadata [65536]layers.EnumMetadata

func initUnknownFrameIDs() {
	// Unknown frames are consumed as opaque payload, not treated as errors
	for i := 0; i < 65536; i++ {
		FrameMetadata[i] = layers.EnumMetadata{
			DecodeWith: gopacket.LayerTypePayload,
			Name:       "UnknownFrameID",
			LayerType:  gopacket.LayerTypePayload,
		}
	}
}

func initActualFrameIDs() {
	FrameMetadata[FrameIDHighRate] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(DecodeSamplesLayer), Name: "HighRate", LayerType: SamplesLayerType}
	FrameMetadata[FrameIDLowRate] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(DecodeSamplesLayer), Name: "LowRate", LayerType: SamplesLayerType}
	FrameMetadata[FrameIDAck] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(DecodeAckLayer), Name: "Ack", LayerType: AckLayerType}
	FrameMetadata[FrameIDInfo] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(DecodeInfoLayer), Name: "Info", LayerType: InfoLayerType}
	FrameMetadata[FrameIDStatus] = layers.EnumMetadata{DecodeWith: gopacket.LayerTypePayload, Name: "Status", LayerType: gopacket.LayerTypePayload}
	FrameMetadata[FrameIDStart] = layers.EnumMetadata{DecodeWith: gopacket.LayerTypePayload, Name: "Start", LayerType: gopacket.LayerTypePayload}
	FrameMetadata[FrameIDStop] = layers.EnumMetadata{DecodeWith: gopacket.LayerTypePayload, Name: "Stop", LayerType: gopacket.LayerTypePayload}
}

// LayerType returns FrameMetadata.LayerType
func (id FrameID) LayerType() gopacket.LayerType {
	return FrameMetadata[id].LayerType
}

// Decode calls FrameMetadata.DecodeWith's decoder
func (id FrameID) Decode(data []byte, p gopacket.PacketBuilder) error {
	return FrameMetadata[id].DecodeWith.Decode(data, p)
}

// String returns FrameMetadata.Name
func (id FrameID) String() string {
	return FrameMetadata[id].Name
}

// Checksum returns the value which makes the 16 bit sum of data and checksum zero
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return -sum
}

type FrameHeader struct {
	Sync uint16
	ID   FrameID
	Size uint16 // whole frame including header and checksum, in bytes
}

type FrameLayer struct {
	layers.BaseLayer
	FrameHeader
	Checksum uint16
}

var FrameLayerType = gopacket.RegisterLayerType(FrameLayerNum,
	gopacket.LayerTypeMetadata{Name: "FrameLayerType", Decoder: gopacket.DecodeFunc(decodeFrameLayer)})

func (f *FrameLayer) LayerType() gopacket.LayerType {
	return FrameLayerType
}

// SerializeHeader serializes only the frame header (not the checksum) to a buffer
func (f *FrameLayer) SerializeHeader(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], f.Sync)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.ID))
	binary.BigEndian.PutUint16(buf[4:6], f.Size)
}

// SerializeTo wraps the already serialized payload with header and checksum
func (f *FrameLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	payloadLength := len(b.Bytes())
	if payloadLength+FrameMinSize > FrameMaxSize {
		return ErrFrameTooLong{Size: payloadLength + FrameMinSize}
	}
	headerBytes, err := b.PrependBytes(FrameHeaderSize)
	if err != nil {
		return err
	}
	if opts.FixLengths {
		f.Sync = FrameSync
		f.Size = uint16(payloadLength + FrameMinSize)
	}
	f.SerializeHeader(headerBytes)

	if opts.ComputeChecksums {
		f.Checksum = Checksum(b.Bytes())
	}
	tailBytes, err := b.AppendBytes(FrameChecksumSize)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(tailBytes, f.Checksum)
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as one PL4 frame.
// data must start at the frame marker; bytes past the frame size are ignored.
func (f *FrameLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < FrameMinSize {
		df.SetTruncated()
		return ErrFrameTruncated{Have: len(data), Need: FrameMinSize}
	}
	sync := binary.BigEndian.Uint16(data[0:2])
	if sync != FrameSync {
		return fmt.Errorf("Wrong frame sync 0x%04x. Must be 0x%04x", sync, FrameSync)
	}
	size := int(binary.BigEndian.Uint16(data[4:6]))
	if size < FrameMinSize || size > FrameMaxSize {
		return ErrFrameSize{Size: size}
	}
	if len(data) < size {
		df.SetTruncated()
		return ErrFrameTruncated{Have: len(data), Need: size}
	}

	f.Sync = sync
	f.ID = FrameID(binary.BigEndian.Uint16(data[2:4]))
	f.Size = uint16(size)
	f.Checksum = binary.BigEndian.Uint16(data[size-FrameChecksumSize : size])
	f.BaseLayer = layers.BaseLayer{
		Contents: data[0:FrameHeaderSize],
		Payload:  data[FrameHeaderSize : size-FrameChecksumSize],
	}

	if want := Checksum(data[:size-FrameChecksumSize]); want != f.Checksum {
		return ErrChecksum{ID: f.ID, Want: want, Got: f.Checksum}
	}
	return nil
}

func (f *FrameLayer) CanDecode() gopacket.LayerClass {
	return FrameLayerType
}

func (f *FrameLayer) NextLayerType() gopacket.LayerType {
	return f.ID.LayerType()
}

func decodeFrameLayer(data []byte, p gopacket.PacketBuilder) error {
	f := &FrameLayer{}
	err := f.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(f)
	if len(f.Payload) == 0 && !f.ID.Type().IsSamples() {
		return nil
	}
	return p.NextDecoder(f.ID)
}

// SerializeFrame builds a complete frame around an optional payload layer
func SerializeFrame(id FrameID, payload gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	frame := &FrameLayer{FrameHeader: FrameHeader{ID: id}}
	var err error
	if payload == nil {
		err = gopacket.SerializeLayers(buf, opts, frame)
	} else {
		err = gopacket.SerializeLayers(buf, opts, frame, payload)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// Command builds a host to device command frame, commands have no payload
func Command(id FrameID) ([]byte, error) {
	return SerializeFrame(id, nil)
}
