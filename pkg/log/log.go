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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	LogPrefix  = "go-pl4"
	TimeFormat = "2006/01/02 15:04:05.000"
	HelpLevels = "Must be one of: error, warning, info, debug."
)

const (
	ErrorLevel LogLevel = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

var levelMapping = map[string]LogLevel{
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

var zerologLevels = map[LogLevel]zerolog.Level{
	ErrorLevel:   zerolog.ErrorLevel,
	WarningLevel: zerolog.WarnLevel,
	InfoLevel:    zerolog.InfoLevel,
	DebugLevel:   zerolog.DebugLevel,
}

type Logger struct {
	level LogLevel
	zerolog.Logger
}

var logger = newLogger(os.Stderr, InfoLevel)

func newLogger(out io.Writer, level LogLevel) *Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: TimeFormat}).
		With().Timestamp().Str("app", LogPrefix).Logger().
		Level(zerologLevels[level])
	return &Logger{level: level, Logger: zl}
}

// ParseLevel maps a level name to a LogLevel
func ParseLevel(strLevel string) (LogLevel, error) {
	level, ok := levelMapping[strLevel]
	if !ok {
		return ErrorLevel, errors.New("Wrong log level. " + HelpLevels)
	}
	return level, nil
}

func SetLevel(strLevel string) error {
	level, err := ParseLevel(strLevel)
	if err != nil {
		return err
	}
	logger.level = level
	logger.Logger = logger.Logger.Level(zerologLevels[level])
	return nil
}

// Init redirects the package logger to out with the given level
func Init(out io.Writer, strLevel string) error {
	level, err := ParseLevel(strLevel)
	if err != nil {
		return err
	}
	logger = newLogger(out, level)
	return nil
}

// Zerolog returns the underlying structured logger for callers which
// want to attach fields instead of formatting messages.
func Zerolog() zerolog.Logger {
	return logger.Logger
}

func Error(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func Warning(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func Info(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func Debug(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func logAt(level LogLevel, msg string) {
	switch level {
	case ErrorLevel:
		Error("%s", msg)
	case WarningLevel:
		Warning("%s", msg)
	case InfoLevel:
		Info("%s", msg)
	default:
		Debug("%s", msg)
	}
}

// LineLogger sends lines written by libraries (http access logs,
// recovered panics) to the package logger at a fixed level
type LineLogger struct {
	Level LogLevel
}

func (l LineLogger) Write(p []byte) (int, error) {
	logAt(l.Level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (l LineLogger) Println(v ...interface{}) {
	logAt(l.Level, strings.TrimRight(fmt.Sprintln(v...), "\n"))
}
