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

package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-pl4/pkg/command"
	"jinr.ru/greenlab/go-pl4/pkg/config"
)

const (
	StartOptionName     = "start"
	TransportOptionName = "transport"
	PortOptionName      = "port"
	SerialOptionName    = "serial"
	IndexOptionName     = "index"
	TickRateOptionName  = "tick-rate"
	AddressOptionName   = "api-address"
	ApiPortOptionName   = "api-port"
	DBPathOptionName    = "db"
)

// NewCommand creates the command running the node host
func NewCommand(cfg *config.Config) *cobra.Command {
	var autoStart bool
	var transport, port, serial, address, dbPath string
	var index, apiPort int
	var tickRate float64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the device node with its control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed(TransportOptionName) {
				cfg.Device.Transport = transport
			}
			if flags.Changed(PortOptionName) {
				cfg.Device.Port = port
			}
			if flags.Changed(SerialOptionName) {
				cfg.Device.Serial = serial
			}
			if flags.Changed(IndexOptionName) {
				cfg.Device.Index = index
			}
			if flags.Changed(TickRateOptionName) {
				cfg.Device.TickRate = tickRate
			}
			if flags.Changed(AddressOptionName) {
				cfg.Api.Address = address
			}
			if flags.Changed(ApiPortOptionName) {
				cfg.Api.Port = apiPort
			}
			if flags.Changed(DBPathOptionName) {
				cfg.DBPath = dbPath
			}
			return command.RunServer(cfg, autoStart)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&autoStart, StartOptionName, false, "Connect to the device right away")
	flags.StringVar(&transport, TransportOptionName, "", fmt.Sprintf("Transport: %s or %s", config.TransportSerial, config.TransportSim))
	flags.StringVar(&port, PortOptionName, "", "Serial port path. E.g. /dev/ttyUSB0")
	flags.StringVar(&serial, SerialOptionName, "", "USB serial number of the device")
	flags.IntVar(&index, IndexOptionName, 0, "Index of the device among attached PL4 units")
	flags.Float64Var(&tickRate, TickRateOptionName, config.DefaultTickRate, "Ticks per second")
	flags.StringVar(&address, AddressOptionName, "", fmt.Sprintf("API address to bind. E.g. %s", config.DefaultApiAddress))
	flags.IntVar(&apiPort, ApiPortOptionName, config.DefaultApiPort, "API port to bind")
	flags.StringVar(&dbPath, DBPathOptionName, "", "Session database path")
	return cmd
}
