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

// Package metrics exports per tick acquisition counters to InfluxDB
package metrics

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"jinr.ru/greenlab/go-pl4/pkg/batch"
	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
	"jinr.ru/greenlab/go-pl4/pkg/log"
)

const (
	TickMeasurement  = "pl4.tick"
	StateMeasurement = "pl4.state"
)

type Sink struct {
	writeAPI api.WriteAPI
	client   influxdb2.Client
	done     chan struct{}
	once     sync.Once
}

// New connects to InfluxDB, or returns a sink writing nowhere when influx is disabled
func New(cfg *config.InfluxConfig) *Sink {
	if cfg == nil || !cfg.Enabled {
		return NewWithWriteAPI(&MockWriteAPI{})
	}
	log.Info("Exporting metrics to %s org %s bucket %s", cfg.Host, cfg.Organization, cfg.Bucket)
	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	s := NewWithWriteAPI(client.WriteAPI(cfg.Organization, cfg.Bucket))
	s.client = client
	return s
}

func NewWithWriteAPI(writeAPI api.WriteAPI) *Sink {
	s := &Sink{writeAPI: writeAPI, done: make(chan struct{})}
	if errs := writeAPI.Errors(); errs != nil {
		go func() {
			for {
				select {
				case err := <-errs:
					log.Warning("InfluxDB write: %s", err)
				case <-s.done:
					return
				}
			}
		}()
	}
	return s
}

// Tick records the outcome of one tick
func (s *Sink) Tick(status *driver.Status, hz1024, hz256 batch.Batch, at time.Time) {
	tags := map[string]string{
		"device": status.Device,
	}
	if status.Session != "" {
		tags["session"] = status.Session
	}
	fields := map[string]interface{}{
		"samples_1024hz":   len(hz1024.Samples),
		"samples_256hz":    len(hz256.Samples),
		"seq_1024hz":       int64(hz1024.Seq),
		"seq_256hz":        int64(hz256.Seq),
		"frames":           int64(status.Decoder.Frames),
		"decode_errors":    int64(status.Decoder.DecodeErrors),
		"skipped_bytes":    int64(status.Decoder.SkippedBytes),
		"gaps_1024hz":      int64(status.Demux.High.Gaps),
		"gaps_256hz":       int64(status.Demux.Low.Gaps),
		"stale_1024hz":     int64(status.Demux.High.StaleFrames),
		"stale_256hz":      int64(status.Demux.Low.StaleFrames),
		"discarded":        int64(status.Demux.Discarded),
		"resyncs_1024hz":   int64(status.Demux.High.Resyncs),
		"resyncs_256hz":    int64(status.Demux.Low.Resyncs),
		"budget_exhausted": int64(status.BudgetExhausted),
	}
	s.writeAPI.WritePoint(influxdb2.NewPoint(TickMeasurement, tags, fields, at))
}

// State records a connection state transition
func (s *Sink) State(device string, from, to driver.State, err error, at time.Time) {
	fields := map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"state": int(to),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.writeAPI.WritePoint(influxdb2.NewPoint(StateMeasurement, map[string]string{"device": device}, fields, at))
}

func (s *Sink) Close() {
	s.once.Do(func() {
		s.writeAPI.Flush()
		close(s.done)
		if s.client != nil {
			s.client.Close()
		}
	})
}
