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

package transport

import (
	"fmt"
	"time"
)

// Descriptor selects a device. Path wins over Serial, Serial wins over Index.
type Descriptor struct {
	Path     string
	Serial   string
	Index    int
	BaudRate int
}

func (d Descriptor) String() string {
	switch {
	case d.Path != "":
		return d.Path
	case d.Serial != "":
		return fmt.Sprintf("serial %s", d.Serial)
	default:
		return fmt.Sprintf("#%d", d.Index)
	}
}

// Handle is an open byte stream to the device. Implementations do not
// interpret the bytes and do not retry.
type Handle interface {
	// Read returns at most max bytes, waiting at most timeout.
	// Returns an empty slice and nil error when nothing arrived in time.
	Read(max int, timeout time.Duration) ([]byte, error)
	Write(data []byte) (int, error)
	Close() error
}

// Purger is implemented by handles able to drop pending input
type Purger interface {
	Purge() error
}

type Transport interface {
	Open(d Descriptor) (Handle, error)
}

// Port describes a device visible to a transport
type Port struct {
	Path         string `json:"path"`
	SerialNumber string `json:"serialNumber"`
	Product      string `json:"product"`
	VID          string `json:"vid"`
	PID          string `json:"pid"`
}

// Lister is implemented by transports able to enumerate devices
type Lister interface {
	List() ([]Port, error)
}
