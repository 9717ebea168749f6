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

const (
	// SamplesLayerNum identifies the layer
	SamplesLayerNum = 2001
	// SampleSize is the width of one channel value on the wire
	SampleSize = 3
	// SeqSize is the frame sequence number preceding the values
	SeqSize = 2

	SampleMax = 1<<23 - 1
	SampleMin = -1 << 23
)

// SamplesLayer is the payload of HighRate and LowRate frames:
// a 16 bit sequence number followed by one 24 bit value per channel
type SamplesLayer struct {
	layers.BaseLayer
	Seq    uint16
	Values []int32
}

var SamplesLayerType = gopacket.RegisterLayerType(SamplesLayerNum,
	gopacket.LayerTypeMetadata{Name: "SamplesLayerType", Decoder: gopacket.DecodeFunc(DecodeSamplesLayer)})

func (s *SamplesLayer) LayerType() gopacket.LayerType {
	return SamplesLayerType
}

func (s *SamplesLayer) CanDecode() gopacket.LayerClass {
	return SamplesLayerType
}

func (s *SamplesLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// Int24 sign extends a big endian 24 bit two's complement value
func Int24(b []byte) int32 {
	return int32(uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8) >> 8
}

// PutInt24 writes the low 24 bits of v big endian
func PutInt24(b []byte, v int32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func (s *SamplesLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < SeqSize {
		df.SetTruncated()
		return ErrPayload{Layer: "samples", What: "no sequence number"}
	}
	if (len(data)-SeqSize)%SampleSize != 0 {
		return ErrPayload{Layer: "samples", What: fmt.Sprintf("%d value bytes is not a multiple of %d", len(data)-SeqSize, SampleSize)}
	}
	s.Seq = binary.BigEndian.Uint16(data[0:2])
	n := (len(data) - SeqSize) / SampleSize
	s.Values = make([]int32, n)
	for i := 0; i < n; i++ {
		offset := SeqSize + i*SampleSize
		s.Values[i] = Int24(data[offset : offset+SampleSize])
	}
	s.BaseLayer = layers.BaseLayer{Contents: data, Payload: nil}
	return nil
}

func (s *SamplesLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(SeqSize + len(s.Values)*SampleSize)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes[0:2], s.Seq)
	for i, v := range s.Values {
		if v > SampleMax || v < SampleMin {
			return ErrPayload{Layer: "samples", What: fmt.Sprintf("value %d of channel %d does not fit 24 bits", v, i)}
		}
		offset := SeqSize + i*SampleSize
		PutInt24(bytes[offset:offset+SampleSize], v)
	}
	return nil
}

func DecodeSamplesLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &SamplesLayer{}
	err := s.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}

// SamplesFrame builds a complete HighRate or LowRate frame
func SamplesFrame(id FrameID, seq uint16, values []int32) ([]byte, error) {
	return SerializeFrame(id, &SamplesLayer{Seq: seq, Values: values})
}
