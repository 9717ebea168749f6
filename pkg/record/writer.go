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
	"bufio"
	"os"

	"github.com/fxamacker/cbor/v2"

	"jinr.ru/greenlab/go-pl4/pkg/log"
)

var encMode cbor.EncMode

func init() {
	var err error
	// sample timestamps are nanosecond precise
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
}

// Writer appends records to a file as a CBOR sequence
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	enc     *cbor.Encoder
	records int
}

func NewWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		log.Error("Error while creating file: %s", filename)
		return nil, err
	}
	buf := bufio.NewWriter(file)
	return &Writer{
		file: file,
		buf:  buf,
		enc:  encMode.NewEncoder(buf),
	}, nil
}

func (w *Writer) Write(rec *Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return err
	}
	w.records++
	return nil
}

func (w *Writer) Records() int {
	return w.records
}

func (w *Writer) Name() string {
	return w.file.Name()
}

// Flush writes buffered records to disk and closes the file
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
