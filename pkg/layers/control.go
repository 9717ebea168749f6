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

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"sigs.k8s.io/yaml"
)

const (
	AckLayerNum  = 2002
	InfoLayerNum = 2003

	// AckStatusOK is the only status which confirms a command
	AckStatusOK = 0x00

	infoBaseSize     = 10
	infoChannelsSize = 2
)

// AckLayer is the device answer to a host command
type AckLayer struct {
	layers.BaseLayer
	Status uint8
	// Command is the acknowledged command id, zero when the device omits it
	Command    FrameID
	HasCommand bool
}

var AckLayerType = gopacket.RegisterLayerType(AckLayerNum,
	gopacket.LayerTypeMetadata{Name: "AckLayerType", Decoder: gopacket.DecodeFunc(DecodeAckLayer)})

func (a *AckLayer) LayerType() gopacket.LayerType {
	return AckLayerType
}

func (a *AckLayer) CanDecode() gopacket.LayerClass {
	return AckLayerType
}

func (a *AckLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (a *AckLayer) OK() bool {
	return a.Status == AckStatusOK
}

func (a *AckLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 1 {
		df.SetTruncated()
		return ErrPayload{Layer: "ack", What: "no status byte"}
	}
	a.Status = data[0]
	if len(data) >= 3 {
		a.Command = FrameID(binary.BigEndian.Uint16(data[1:3]))
		a.HasCommand = true
	}
	a.BaseLayer = layers.BaseLayer{Contents: data, Payload: nil}
	return nil
}

func (a *AckLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	size := 1
	if a.HasCommand {
		size = 3
	}
	bytes, err := b.PrependBytes(size)
	if err != nil {
		return err
	}
	bytes[0] = a.Status
	if a.HasCommand {
		binary.BigEndian.PutUint16(bytes[1:3], uint16(a.Command))
	}
	return nil
}

func DecodeAckLayer(data []byte, p gopacket.PacketBuilder) error {
	a := &AckLayer{}
	err := a.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(a)
	return nil
}

// DeviceInfo is reported by the device in response to the INFO command
type DeviceInfo struct {
	DeviceID        uint16 `json:"deviceID"`
	SoftwareVersion uint16 `json:"softwareVersion"`
	HardwareVersion uint16 `json:"hardwareVersion"`
	SerialNumber    uint32 `json:"serialNumber"`
	// Channel counts are only present in newer firmware, zero means not reported
	HighChannels uint8 `json:"highChannels,omitempty"`
	LowChannels  uint8 `json:"lowChannels,omitempty"`
}

func (i *DeviceInfo) String() string {
	data, err := yaml.Marshal(i)
	if err != nil {
		return ""
	}
	return string(data)
}

// InfoLayer carries the INFO response payload
type InfoLayer struct {
	layers.BaseLayer
	DeviceInfo
}

var InfoLayerType = gopacket.RegisterLayerType(InfoLayerNum,
	gopacket.LayerTypeMetadata{Name: "InfoLayerType", Decoder: gopacket.DecodeFunc(DecodeInfoLayer)})

func (l *InfoLayer) LayerType() gopacket.LayerType {
	return InfoLayerType
}

func (l *InfoLayer) CanDecode() gopacket.LayerClass {
	return InfoLayerType
}

func (l *InfoLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (l *InfoLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < infoBaseSize {
		df.SetTruncated()
		return ErrPayload{Layer: "info", What: "payload shorter than 10 bytes"}
	}
	l.DeviceID = binary.BigEndian.Uint16(data[0:2])
	l.SoftwareVersion = binary.BigEndian.Uint16(data[2:4])
	l.HardwareVersion = binary.BigEndian.Uint16(data[4:6])
	l.SerialNumber = binary.BigEndian.Uint32(data[6:10])
	if len(data) >= infoBaseSize+infoChannelsSize {
		l.HighChannels = data[10]
		l.LowChannels = data[11]
	}
	l.BaseLayer = layers.BaseLayer{Contents: data, Payload: nil}
	return nil
}

func (l *InfoLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	size := infoBaseSize
	withChannels := l.HighChannels != 0 || l.LowChannels != 0
	if withChannels {
		size += infoChannelsSize
	}
	bytes, err := b.PrependBytes(size)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes[0:2], l.DeviceID)
	binary.BigEndian.PutUint16(bytes[2:4], l.SoftwareVersion)
	binary.BigEndian.PutUint16(bytes[4:6], l.HardwareVersion)
	binary.BigEndian.PutUint32(bytes[6:10], l.SerialNumber)
	if withChannels {
		bytes[10] = l.HighChannels
		bytes[11] = l.LowChannels
	}
	return nil
}

func DecodeInfoLayer(data []byte, p gopacket.PacketBuilder) error {
	l := &InfoLayer{}
	err := l.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(l)
	return nil
}

func AckFrame(status uint8, command FrameID) ([]byte, error) {
	return SerializeFrame(FrameIDAck, &AckLayer{Status: status, Command: command, HasCommand: true})
}

func InfoFrame(info DeviceInfo) ([]byte, error) {
	return SerializeFrame(FrameIDInfo, &InfoLayer{DeviceInfo: info})
}
