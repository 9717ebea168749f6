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

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/api/write"

	"jinr.ru/greenlab/go-pl4/pkg/batch"
	"jinr.ru/greenlab/go-pl4/pkg/demux"
	"jinr.ru/greenlab/go-pl4/pkg/driver"
)

type recordingWriteAPI struct {
	MockWriteAPI
	mu     sync.Mutex
	points []*write.Point
	errs   chan error
}

func (r *recordingWriteAPI) WritePoint(point *write.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, point)
}

func (r *recordingWriteAPI) Errors() <-chan error { return r.errs }

func fieldValue(p *write.Point, key string) interface{} {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestTick(t *testing.T) {
	w := &recordingWriteAPI{errs: make(chan error)}
	s := NewWithWriteAPI(w)
	defer s.Close()

	status := &driver.Status{Device: "PL4-1", State: driver.Streaming, Session: "abc"}
	status.Demux.High.Gaps = 4
	hz1024 := batch.Batch{Port: demux.PortHigh, Seq: 3, Samples: make([]demux.Sample, 24)}
	hz256 := batch.Batch{Port: demux.PortLow, Seq: 3}
	at := time.Unix(100, 0)
	s.Tick(status, hz1024, hz256, at)
	s.State("PL4-1", driver.Streaming, driver.Faulted, errors.New("unplugged"), at)

	w.errs <- errors.New("write failed") // drained by the sink

	if len(w.points) != 2 {
		t.Fatalf("got %d points", len(w.points))
	}
	tick := w.points[0]
	if tick.Name() != TickMeasurement || !tick.Time().Equal(at) {
		t.Errorf("tick point = %s at %v", tick.Name(), tick.Time())
	}
	if v := fieldValue(tick, "samples_1024hz"); v != int64(24) {
		t.Errorf("samples_1024hz = %v (%T)", v, v)
	}
	if v := fieldValue(tick, "gaps_1024hz"); v != int64(4) {
		t.Errorf("gaps_1024hz = %v", v)
	}
	state := w.points[1]
	if v := fieldValue(state, "to"); v != "Faulted" {
		t.Errorf("state to = %v", v)
	}
	if v := fieldValue(state, "error"); v != "unplugged" {
		t.Errorf("state error = %v", v)
	}
}

func TestDisabledSink(t *testing.T) {
	s := New(nil)
	s.Tick(&driver.Status{}, batch.Batch{}, batch.Batch{}, time.Now())
	s.Close()
}
