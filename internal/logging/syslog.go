// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"
	"net"
	"time"
)

// SyslogConfig controls forwarding of log records to a remote syslog
// collector, independent of the local sink.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility syslog.Priority // numeric syslog facility code (1 = user-level)
}

// DefaultSyslogConfig returns remote syslog forwarding disabled, with the
// conventional defaults normalized on first enable.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "dpbd",
		Facility: 1,
	}
}

// syslogWriter forwards writes to a remote syslog collector over a plain
// net.Conn; it does not use the stdlib log/syslog dialer so the transport
// protocol (udp or tcp) is explicit and caller-controlled.
type syslogWriter struct {
	conn net.Conn
	tag  string
}

// NewSyslogWriter dials the collector named by cfg and returns an io.Writer
// that frames each write as an RFC3164 syslog message.
func NewSyslogWriter(cfg SyslogConfig) (*syslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 514
	}
	proto := cfg.Protocol
	if proto == "" {
		proto = "udp"
	}
	tag := cfg.Tag
	if tag == "" {
		tag = "dpbd"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, port)
	conn, err := net.DialTimeout(proto, addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s://%s: %w", proto, addr, err)
	}

	facility := cfg.Facility
	if facility == 0 {
		facility = 1
	}

	return &syslogWriter{conn: conn, tag: tag}, nil
}

func (w *syslogWriter) Write(p []byte) (int, error) {
	msg := fmt.Sprintf("<%d>%s %s: %s", syslog.LOG_USER|syslog.LOG_INFO, time.Now().Format(time.Stamp), w.tag, p)
	if _, err := w.conn.Write([]byte(msg)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *syslogWriter) Close() error {
	return w.conn.Close()
}
