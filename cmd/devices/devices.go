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

package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/srv"
)

const (
	TransportOptionName = "transport"
)

// NewCommand lists the PL4 units the transport can see, index order is
// the order used by the index device selector
func NewCommand(cfg *config.Config) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached PL4 devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if transport != "" {
				cfg.Device.Transport = transport
			}
			ports, err := srv.ListPorts(cfg.Device)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No devices found")
				return nil
			}
			for i, port := range ports {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", i, port.Path, port.SerialNumber, port.Product)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transport, TransportOptionName, "", fmt.Sprintf("Transport: %s or %s", config.TransportSerial, config.TransportSim))
	return cmd
}
