// Package config loads the labcheck daemon configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/celerix-dev/labcheck/internal/asc"
	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/notify"
	"github.com/rs/zerolog/log"
)

const (
	dfltDataDir         = "./data"
	dfltHTTPPort        = 7002
	dfltTCPPort         = 7001
	dfltStoreType       = engine.TypeXLSX
	dfltWorkers         = 4
	dfltShutdownTimeout = 10
)

type TLSConf struct {
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
	// SelfSigned generates an in-memory certificate when no key pair is configured.
	SelfSigned bool `json:"selfSigned"`
}

// Enabled reports whether the TCP server should use TLS.
func (c TLSConf) Enabled() bool {
	return c.SelfSigned || (c.CertFile != "" && c.KeyFile != "")
}

type TraceConf struct {
	Marker    string              `json:"marker"`
	Threshold float64             `json:"threshold"`
	Workers   int                 `json:"workers"`
	Fields    []asc.FieldPosition `json:"fields"`
}

type Conf struct {
	srcPath             string
	Logging             LoggingConf `json:"logging"`
	ListenAddress       string      `json:"listenAddress"`
	HTTPPort            int         `json:"httpPort"`
	TCPPort             int         `json:"tcpPort"`
	TLS                 TLSConf     `json:"tls"`
	CorsAllowedOrigins  []string    `json:"corsAllowedOrigins"`
	ShutdownTimeoutSecs int         `json:"shutdownTimeoutSecs"`
	DataDir             string      `json:"dataDir"`
	Store               engine.Conf `json:"store"`
	RosterPath          string      `json:"rosterPath"`
	QuestionBankPath    string      `json:"questionBankPath"`
	ReportDir           string      `json:"reportDir"`
	Trace               TraceConf   `json:"trace"`
	NATS                notify.Conf `json:"nats"`
}

// SrcPath is the file the configuration was read from, empty for defaults.
func (c *Conf) SrcPath() string {
	return c.srcPath
}

// HTTPAddr is the listen address of the HTTP API.
func (c *Conf) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.HTTPPort)
}

// TCPAddr is the listen address of the line protocol server.
func (c *Conf) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.TCPPort)
}

// TraceOptions converts the trace section into analysis options.
func (c *Conf) TraceOptions() asc.Options {
	opts := asc.DefaultOptions()
	if c.Trace.Marker != "" {
		opts.Layout.Marker = c.Trace.Marker
	}
	if len(c.Trace.Fields) > 0 {
		opts.Layout.Fields = c.Trace.Fields
	}
	if c.Trace.Threshold > 0 {
		opts.Threshold = c.Trace.Threshold
	}
	opts.Workers = c.Trace.Workers
	return opts
}

// LoadConfig reads a JSON configuration. An empty path yields a zero configuration to be
// completed by ApplyEnv and ValidateAndDefaults.
func LoadConfig(path string) (*Conf, error) {
	var conf Conf
	if path == "" {
		return &conf, nil
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	if err := json.Unmarshal(rawData, &conf); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	conf.srcPath = path
	return &conf, nil
}

// ApplyEnv overrides configured values with the LABCHECK_* environment variables.
func ApplyEnv(conf *Conf) error {
	if v := os.Getenv("LABCHECK_DATA_DIR"); v != "" {
		conf.DataDir = v
	}
	if v := os.Getenv("LABCHECK_STORE"); v != "" {
		conf.Store.Type = v
	}
	if v := os.Getenv("LABCHECK_NATS_URL"); v != "" {
		conf.NATS.URL = v
	}
	for name, dst := range map[string]*int{
		"LABCHECK_HTTP_PORT": &conf.HTTPPort,
		"LABCHECK_TCP_PORT":  &conf.TCPPort,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = port
	}
	return nil
}

// ValidateAndDefaults fills in missing values, logging each default, and rejects
// configurations the daemon cannot run with.
func ValidateAndDefaults(conf *Conf) error {
	if conf.DataDir == "" {
		conf.DataDir = dfltDataDir
		log.Warn().Str("dataDir", dfltDataDir).Msg("dataDir not specified, using default")
	}
	if conf.HTTPPort == 0 {
		conf.HTTPPort = dfltHTTPPort
		log.Warn().Int("httpPort", dfltHTTPPort).Msg("httpPort not specified, using default")
	}
	if conf.TCPPort == 0 {
		conf.TCPPort = dfltTCPPort
		log.Warn().Int("tcpPort", dfltTCPPort).Msg("tcpPort not specified, using default")
	}
	if conf.ShutdownTimeoutSecs == 0 {
		conf.ShutdownTimeoutSecs = dfltShutdownTimeout
	}

	if conf.Store.Type == "" {
		conf.Store.Type = dfltStoreType
		log.Warn().Str("type", dfltStoreType).Msg("store type not specified, using default")
	}
	switch conf.Store.Type {
	case engine.TypeXLSX, engine.TypeSQLite, engine.TypeMemory:
	default:
		return fmt.Errorf("unknown store type %q", conf.Store.Type)
	}
	if conf.Store.Path == "" && conf.Store.Type != engine.TypeMemory {
		name := "hse_training_records.xlsx"
		if conf.Store.Type == engine.TypeSQLite {
			name = "hse_training_records.db"
		}
		conf.Store.Path = filepath.Join(conf.DataDir, name)
		log.Warn().Str("path", conf.Store.Path).Msg("store path not specified, using data directory")
	}

	if (conf.TLS.CertFile == "") != (conf.TLS.KeyFile == "") {
		return errors.New("tls needs both certFile and keyFile")
	}

	if conf.Trace.Workers == 0 {
		conf.Trace.Workers = dfltWorkers
	}
	if conf.Trace.Threshold < 0 {
		return fmt.Errorf("invalid trace threshold %v", conf.Trace.Threshold)
	}
	if err := conf.TraceOptions().Layout.Validate(); err != nil {
		return fmt.Errorf("invalid trace layout: %w", err)
	}
	if conf.NATS.URL != "" && conf.NATS.Subject == "" {
		conf.NATS.Subject = notify.DefaultSubject
		log.Warn().Str("subject", notify.DefaultSubject).Msg("nats subject not specified, using default")
	}
	return nil
}
