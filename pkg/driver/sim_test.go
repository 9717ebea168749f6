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
	"context"
	"testing"
	"time"

	"jinr.ru/greenlab/go-pl4/pkg/config"
	"jinr.ru/greenlab/go-pl4/pkg/transport/sim"
)

func TestStreamFromSimulator(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1600000000, 0)}
	dev := sim.New(sim.WithClock(clock.Now, clock.Advance))
	cfg := config.NewDefaultDeviceConfig()
	cfg.Transport = config.TransportSim

	n, err := New(cfg, dev, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	origin := *n.Status().Origin

	var highFrames, lowFrames int
	var lastHigh time.Time
	for i := 0; i < 20; i++ {
		hz1024, hz256 := n.OnTick()
		if hz1024.Seq != uint64(i) || hz256.Seq != uint64(i) {
			t.Fatalf("tick %d: seq %d/%d", i, hz1024.Seq, hz256.Seq)
		}
		for _, s := range hz1024.Samples {
			if s.Timestamp.Before(lastHigh) {
				t.Fatalf("tick %d: timestamps go back", i)
			}
			lastHigh = s.Timestamp
		}
		highFrames += hz1024.Frames()
		lowFrames += hz256.Frames()
		clock.Advance(cfg.TickPeriod() - cfg.ReadBudget())
	}

	status := n.Status()
	if status.State != Streaming {
		t.Fatalf("state = %s, error %q", status.State, status.Error)
	}
	if status.Decoder.DecodeErrors != 0 || status.Demux.High.Gaps != 0 || status.Demux.Low.Gaps != 0 {
		t.Errorf("clean stream produced errors: %+v %+v", status.Decoder, status.Demux)
	}
	if highFrames < 1024 {
		t.Errorf("only %d high rate frames in 2s", highFrames)
	}
	if d := highFrames - 4*lowFrames; d < -4 || d > 4 {
		t.Errorf("high %d and low %d frames out of ratio", highFrames, lowFrames)
	}
	if want := origin.Add(time.Duration(highFrames-1) * time.Second / 1024); lastHigh.Sub(want) > time.Nanosecond || want.Sub(lastHigh) > time.Nanosecond {
		t.Errorf("last timestamp %v, want %v", lastHigh, want)
	}

	if err := n.Stop(); err != nil {
		t.Fatal(err)
	}
	if dev.Streaming() {
		t.Errorf("simulator still streaming after Stop()")
	}
}
