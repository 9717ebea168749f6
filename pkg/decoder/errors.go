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

package decoder

import (
	"fmt"

	"jinr.ru/greenlab/go-pl4/pkg/layers"
)

type Reason string

const (
	ReasonSize     Reason = "size"
	ReasonChecksum Reason = "checksum"
	ReasonPayload  Reason = "payload"
	ReasonLayout   Reason = "layout"
)

// DecodeError describes one dropped frame. It is never fatal for the stream.
type DecodeError struct {
	Reason Reason
	ID     layers.FrameID
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Frame 0x%04x dropped (%s): %s", uint16(e.ID), e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type ErrLayout struct {
	Type layers.FrameType
	Have int
	Want int
}

func (e ErrLayout) Error() string {
	return fmt.Sprintf("%s frame has %d channels, configured %d", e.Type, e.Have, e.Want)
}
