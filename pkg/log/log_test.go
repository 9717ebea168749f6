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

package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    LogLevel
		wantErr bool
	}{
		{"error", "error", ErrorLevel, false},
		{"warning", "warning", WarningLevel, false},
		{"info", "info", InfoLevel, false},
		{"debug", "debug", DebugLevel, false},
		{"unknown", "verbose", ErrorLevel, true},
		{"empty", "", ErrorLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Init(buf, "info"); err != nil {
		t.Fatal(err)
	}
	Debug("hidden %d", 1)
	Info("shown %d", 2)
	if strings.Contains(buf.String(), "hidden 1") {
		t.Errorf("debug message written at info level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("info message missing: %q", buf.String())
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	Debug("visible %s", "now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Errorf("debug message missing after SetLevel: %q", buf.String())
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel() accepted an unknown level")
	}
}

func TestLineLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Init(buf, "warning"); err != nil {
		t.Fatal(err)
	}
	LineLogger{Level: DebugLevel}.Write([]byte("GET /api/status 200\n"))
	LineLogger{Level: ErrorLevel}.Println("panic:", "boom")
	if strings.Contains(buf.String(), "/api/status") {
		t.Errorf("debug line written at warning level")
	}
	if !strings.Contains(buf.String(), "panic: boom") {
		t.Errorf("error line missing: %q", buf.String())
	}
}
