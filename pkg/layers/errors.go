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
	"fmt"
)

// ErrFrameTruncated returned when the buffer ends before the frame does
type ErrFrameTruncated struct {
	Have int
	Need int
}

func (e ErrFrameTruncated) Error() string {
	return fmt.Sprintf("Frame truncated: have %d bytes, need %d", e.Have, e.Need)
}

// ErrFrameSize returned when the size field can not describe a PL4 frame
type ErrFrameSize struct {
	Size int
}

func (e ErrFrameSize) Error() string {
	return fmt.Sprintf("Impossible frame size %d. Must be in [%d, %d]", e.Size, FrameMinSize, FrameMaxSize)
}

type ErrFrameTooLong struct {
	Size int
}

func (e ErrFrameTooLong) Error() string {
	return fmt.Sprintf("Frame too long: %d bytes, max %d", e.Size, FrameMaxSize)
}

// ErrChecksum returned when the trailing checksum does not match the frame bytes
type ErrChecksum struct {
	ID   FrameID
	Want uint16
	Got  uint16
}

func (e ErrChecksum) Error() string {
	return fmt.Sprintf("Checksum mismatch in frame 0x%04x: want 0x%04x, got 0x%04x", uint16(e.ID), e.Want, e.Got)
}

// ErrPayload returned when a payload layer can not be decoded or serialized
type ErrPayload struct {
	Layer string
	What  string
}

func (e ErrPayload) Error() string {
	return fmt.Sprintf("Malformed %s payload: %s", e.Layer, e.What)
}
