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

// Package record persists the batches handed off by the driver
package record

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"jinr.ru/greenlab/go-pl4/pkg/batch"
	"jinr.ru/greenlab/go-pl4/pkg/log"
)

const (
	FileExtension     = ".cbor"
	DefaultFilePrefix = "pl4"
	timeLayout        = "20060102_150405"
)

// Record is one batch of one session
type Record struct {
	Session string      `cbor:"1,keyasint" json:"session"`
	Batch   batch.Batch `cbor:"2,keyasint" json:"batch"`
}

// Recorder writes non empty batches to the current file, if any
type Recorder struct {
	mu     sync.Mutex
	writer *Writer
	now    func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Persist starts a new file in dir, the previous one is flushed
func (r *Recorder) Persist(dir, filePrefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if filePrefix == "" {
		filePrefix = DefaultFilePrefix
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s%s", filePrefix, r.now().Format(timeLayout), FileExtension))
	w, err := NewWriter(filename)
	if err != nil {
		return "", err
	}
	if err := r.flush(); err != nil {
		log.Error("Error while flushing previous record file: %s", err)
	}
	r.writer = w
	log.Info("Persisting batches to %s", filename)
	return filename, nil
}

func (r *Recorder) flush() error {
	if r.writer == nil {
		return nil
	}
	log.Info("Flushing %d records to %s", r.writer.Records(), r.writer.Name())
	err := r.writer.Flush()
	r.writer = nil
	return err
}

// Flush closes the current file
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}

// Filename is the file being written, empty when not recording
func (r *Recorder) Filename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return ""
	}
	return r.writer.Name()
}

// Consume writes the batches of one tick
func (r *Recorder) Consume(session string, batches ...batch.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return nil
	}
	for i := range batches {
		if batches[i].Empty() {
			continue
		}
		if err := r.writer.Write(&Record{Session: session, Batch: batches[i]}); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile decodes every record of a file written by Recorder
func ReadFile(filename string) ([]*Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []*Record
	dec := cbor.NewDecoder(file)
	for {
		rec := &Record{}
		err := dec.Decode(rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
