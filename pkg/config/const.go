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

package config

const (
	ConfigDir  = ".go-pl4"
	ConfigFile = "config"
	DBFile     = "state.db"

	TransportSerial = "serial"
	TransportSim    = "sim"

	DefaultLogLevel  = "info"
	DefaultTransport = TransportSerial
	DefaultBaudRate  = 921600
	// DefaultChannelCountHigh and DefaultChannelCountLow describe the
	// PL4 model with 12 fast and 4 slow channels
	DefaultChannelCountHigh   = 12
	DefaultChannelCountLow    = 4
	DefaultTickRate           = 10.0
	DefaultHandshakeTimeoutMs = 2000
	DefaultReadBufferSize     = 65536
	DefaultApiAddress         = "127.0.0.1"
	DefaultApiPort            = 8004
	DefaultInfluxHost         = "http://localhost:8086"
	DefaultInfluxOrganization = "greenlab"
	DefaultInfluxBucket       = "pl4"

	MaxChannels        = 32
	MaxTickRate        = 1000.0
	MinReadBufferSize  = 64
	// ReadBudgetFraction is the share of one tick period a tick may spend
	// waiting for the transport
	ReadBudgetFraction = 4
	MaxReadTimeoutMs   = 20
)
