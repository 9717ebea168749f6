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

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/log"
	"jinr.ru/greenlab/go-pl4/pkg/srv"
)

// RunServer runs the node host until SIGINT or SIGTERM
func RunServer(cfg *config.Config, autoStart bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := srv.NewTransport(cfg.Device)
	if err != nil {
		return err
	}
	s, err := srv.NewServer(ctx, cfg, tr)
	if err != nil {
		return err
	}
	log.Info("Serving %s, api on %s:%d", cfg.Device.DeviceSerialOrIndex(), cfg.Api.Address, cfg.Api.Port)
	return s.Run(autoStart)
}
