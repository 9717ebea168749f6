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

package record

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-pl4/pkg/command"
	"jinr.ru/greenlab/go-pl4/pkg/config"
)

const (
	DirOptionName        = "dir"
	FilePrefixOptionName = "file-prefix"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record sample batches to a file",
	}
	cmd.AddCommand(NewStartCommand(cfg))
	cmd.AddCommand(NewStopCommand(cfg))
	return cmd
}

func NewStartCommand(cfg *config.Config) *cobra.Command {
	var dir, filePrefix string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start writing batches to a new file",
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, err := command.NewApiClient(cfg).Record(dir, filePrefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filename)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, DirOptionName, "", "Directory for the record file. Defaults to the configured one")
	cmd.Flags().StringVar(&filePrefix, FilePrefixOptionName, "", "Record file name prefix")
	return cmd
}

func NewStopCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Flush and close the current record file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).Flush()
		},
	}
	return cmd
}
