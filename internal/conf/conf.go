package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of configs/config.yaml.
type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Lake   *Lake   `json:"lake"`
	Trace  *Trace  `json:"trace"`
}

// Server holds the transport settings.
type Server struct {
	Http *Server_HTTP `json:"http"`
	Grpc *Server_GRPC `json:"grpc"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Server_GRPC struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data holds the store and cache settings.
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
	// LockKey identifies the advisory lock serializing pipeline runs.
	LockKey int64 `json:"lock_key"`
}

// Data_Redis configures the optional insights cache. An empty Addr disables it.
type Data_Redis struct {
	Network      string    `json:"network"`
	Addr         string    `json:"addr"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
	TTL          *Duration `json:"ttl"`
}

// Lake locates the input snapshots and the export directory.
type Lake struct {
	Dir       string `json:"dir"`
	ExportDir string `json:"export_dir"`
}

type Trace struct {
	Enabled bool   `json:"enabled"`
	Service string `json:"service"`
}

// Duration decodes "1.5s" style strings as well as plain seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		if value == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// AsDuration returns zero for a nil receiver so optional fields can be read directly.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}
