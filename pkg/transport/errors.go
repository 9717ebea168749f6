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
	"errors"
	"fmt"
)

var ErrClosed = errors.New("handle is closed")

// ConnectionError returned when the device can not be opened or
// does not complete the handshake
type ConnectionError struct {
	Device string
	What   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Connection to %s failed: %s", e.Device, e.What)
	}
	return fmt.Sprintf("Connection to %s failed: %s: %s", e.Device, e.What, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IOError returned when reading or writing an open handle fails
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("I/O error on %s: %s", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
