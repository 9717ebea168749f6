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

package control

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-pl4/pkg/command"
	"jinr.ru/greenlab/go-pl4/pkg/config"
)

func NewStartCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to the device and start streaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := command.NewApiClient(cfg).Start()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), status.String())
			return nil
		},
	}
	return cmd
}

func NewStopCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop streaming and close the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := command.NewApiClient(cfg).Stop()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), status.String())
			return nil
		},
	}
	return cmd
}

func NewStatusCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show device state and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := command.NewApiClient(cfg).Status()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), status.String())
			return nil
		},
	}
	return cmd
}

func NewSessionsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions [id]",
		Short: "List sessions or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				session, err := apiClient.Session(args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(out, session.String())
				return nil
			}
			sessions, err := apiClient.Sessions()
			if err != nil {
				return err
			}
			for _, session := range sessions {
				fmt.Fprintf(out, "%s\t%s\t%s\tframes=%d gaps=%d\n",
					session.ID, session.Started.Format("2006-01-02 15:04:05"), session.State, session.Frames, session.Gaps)
			}
			return nil
		},
	}
	return cmd
}
