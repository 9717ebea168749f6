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

package driver

import (
	"errors"
	"fmt"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
	Faulted
)

var stateNames = map[State]string{
	Disconnected: "Disconnected",
	Connecting:   "Connecting",
	Streaming:    "Streaming",
	Faulted:      "Faulted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// ErrInvalidState is returned for lifecycle calls not allowed in the current state
var ErrInvalidState = errors.New("operation not allowed in current state")

// StateHook observes transitions. It runs with the node locked and must not call back into it.
type StateHook func(from, to State, err error)
