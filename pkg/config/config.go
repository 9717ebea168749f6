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

package config

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sigs.k8s.io/yaml"
)

// DeviceConfig selects the PL4 unit and describes how it is polled
type DeviceConfig struct {
	Transport string `json:"transport"`
	// Port is an explicit serial device path. When empty the unit is
	// looked up by Serial or, failing that, by Index among attached PL4s.
	Port               string  `json:"port,omitempty"`
	Serial             string  `json:"serial,omitempty"`
	Index              int     `json:"index"`
	BaudRate           int     `json:"baudRate"`
	ChannelCountHigh   int     `json:"channelCountHigh"`
	ChannelCountLow    int     `json:"channelCountLow"`
	TickRate           float64 `json:"tickRate"`
	HandshakeTimeoutMs int     `json:"handshakeTimeoutMs"`
	ReadBufferSize     int     `json:"readBufferSize"`
}

type ApiConfig struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type InfluxConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host,omitempty"`
	Token        string `json:"token,omitempty"`
	Organization string `json:"organization,omitempty"`
	Bucket       string `json:"bucket,omitempty"`
}

type RecordConfig struct {
	Dir        string `json:"dir,omitempty"`
	FilePrefix string `json:"filePrefix,omitempty"`
}

type Config struct {
	LogLevel string        `json:"logLevel,omitempty"`
	DBPath   string        `json:"dbPath,omitempty"`
	Device   *DeviceConfig `json:"device,omitempty"`
	Api      *ApiConfig    `json:"api,omitempty"`
	Influx   *InfluxConfig `json:"influx,omitempty"`
	Record   *RecordConfig `json:"record,omitempty"`
	filepath string
}

// TickPeriod is the interval between two scheduler ticks
func (d *DeviceConfig) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / d.TickRate)
}

// ReadBudget is the total time one tick may block on the transport
func (d *DeviceConfig) ReadBudget() time.Duration {
	budget := d.TickPeriod() / ReadBudgetFraction
	if budget < time.Millisecond {
		budget = time.Millisecond
	}
	return budget
}

// ReadTimeout bounds a single transport read within a tick
func (d *DeviceConfig) ReadTimeout() time.Duration {
	timeout := time.Duration(MaxReadTimeoutMs) * time.Millisecond
	if budget := d.ReadBudget(); budget < timeout {
		return budget
	}
	return timeout
}

func (d *DeviceConfig) HandshakeTimeout() time.Duration {
	return time.Duration(d.HandshakeTimeoutMs) * time.Millisecond
}

// DeviceSerialOrIndex is a human readable selector of the configured unit
func (d *DeviceConfig) DeviceSerialOrIndex() string {
	switch {
	case d.Port != "":
		return d.Port
	case d.Serial != "":
		return d.Serial
	default:
		return "#" + strconv.Itoa(d.Index)
	}
}

func (d *DeviceConfig) Validate() error {
	switch d.Transport {
	case TransportSerial, TransportSim:
	default:
		return ErrInvalidConfig{What: "unknown transport " + strconv.Quote(d.Transport)}
	}
	if d.Index < 0 {
		return ErrInvalidConfig{What: "device index must not be negative"}
	}
	if d.BaudRate <= 0 {
		return ErrInvalidConfig{What: "baud rate must be positive"}
	}
	if d.ChannelCountHigh < 1 || d.ChannelCountHigh > MaxChannels {
		return ErrInvalidConfig{What: "channelCountHigh out of range"}
	}
	if d.ChannelCountLow < 1 || d.ChannelCountLow > MaxChannels {
		return ErrInvalidConfig{What: "channelCountLow out of range"}
	}
	if math.IsNaN(d.TickRate) || d.TickRate <= 0 || d.TickRate > MaxTickRate {
		return ErrInvalidConfig{What: "tickRate out of range"}
	}
	if d.HandshakeTimeoutMs <= 0 {
		return ErrInvalidConfig{What: "handshakeTimeoutMs must be positive"}
	}
	if d.ReadBufferSize < MinReadBufferSize {
		return ErrInvalidConfig{What: "readBufferSize too small"}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Device == nil {
		return ErrInvalidConfig{What: "device section is missing"}
	}
	if err := c.Device.Validate(); err != nil {
		return err
	}
	if c.Api == nil || c.Api.Port <= 0 || c.Api.Port > 65535 {
		return ErrInvalidConfig{What: "api port out of range"}
	}
	if c.Influx != nil && c.Influx.Enabled && c.Influx.Host == "" {
		return ErrInvalidConfig{What: "influx host is required when influx is enabled"}
	}
	return nil
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// LoadConfig reads the config file, values missing in the file keep their defaults
func (c *Config) LoadConfig() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Load is LoadConfig which tolerates a missing file
func (c *Config) Load() error {
	err := c.LoadConfig()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return home
}

func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	return filepath.Join(homeDir(), ConfigDir, DBFile)
}

func NewDefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Transport:          DefaultTransport,
		BaudRate:           DefaultBaudRate,
		ChannelCountHigh:   DefaultChannelCountHigh,
		ChannelCountLow:    DefaultChannelCountLow,
		TickRate:           DefaultTickRate,
		HandshakeTimeoutMs: DefaultHandshakeTimeoutMs,
		ReadBufferSize:     DefaultReadBufferSize,
	}
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		DBPath:   DefaultDBPath(),
		Device:   NewDefaultDeviceConfig(),
		Api: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		Influx: &InfluxConfig{
			Enabled:      false,
			Host:         DefaultInfluxHost,
			Organization: DefaultInfluxOrganization,
			Bucket:       DefaultInfluxBucket,
		},
		Record:   &RecordConfig{},
		filepath: DefaultConfigPath(),
	}
}
