package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nmezhenskyi/listend/internal/bind"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestReadConfigDefaults(t *testing.T) {
	conf, err := readConfig(newViper(), "")
	if err != nil {
		t.Fatalf("readConfig returned error: %v", err)
	}
	if conf.Address != "" {
		t.Errorf("Expected empty address, got %q instead", conf.Address)
	}
	if conf.Family != bind.FamilyAny {
		t.Errorf("Expected family %v, got %v instead", bind.FamilyAny, conf.Family)
	}
	if conf.Backlog != 128 {
		t.Errorf("Expected backlog 128, got %d instead", conf.Backlog)
	}
	if conf.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v instead", conf.ShutdownTimeout)
	}
	if conf.Verbosity != "prod" {
		t.Errorf("Expected verbosity prod, got %q instead", conf.Verbosity)
	}
	if conf.Status.Activate || conf.Health.Activate {
		t.Error("Expected status and health servers to be off by default")
	}
}

func TestReadConfigFile(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "JSON",
			file: "listend.json",
			content: `{
	"address": "127.0.0.1",
	"family": "ipv4",
	"backlog": 64,
	"shutdownTimeout": "2s",
	"status": {"activate": true, "port": 6122, "onLocalhost": true},
	"verbosity": "dev"
}`,
		},
		{
			name: "YAML",
			file: "listend.yaml",
			content: `address: 127.0.0.1
family: ipv4
backlog: 64
shutdownTimeout: 2s
status:
  activate: true
  port: 6122
  onLocalhost: true
verbosity: dev
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf, err := readConfig(newViper(), writeConfig(t, tc.file, tc.content))
			if err != nil {
				t.Fatalf("readConfig returned error: %v", err)
			}
			if conf.Address != "127.0.0.1" || conf.Family != bind.FamilyIPv4 || conf.Backlog != 64 {
				t.Errorf("Unexpected main settings: %+v", conf)
			}
			if conf.ShutdownTimeout != 2*time.Second {
				t.Errorf("Expected shutdown timeout 2s, got %v instead", conf.ShutdownTimeout)
			}
			if !conf.Status.Activate || conf.Status.Port != 6122 || !conf.Status.OnLocalhost {
				t.Errorf("Unexpected status settings: %+v", conf.Status)
			}
			if conf.Health.Activate {
				t.Error("Expected health server to stay off")
			}
			if conf.Verbosity != "dev" {
				t.Errorf("Expected verbosity dev, got %q instead", conf.Verbosity)
			}
		})
	}
}

func TestReadConfigEnv(t *testing.T) {
	t.Setenv("LISTEND_BACKLOG", "32")
	t.Setenv("LISTEND_FAMILY", "ipv6")
	t.Setenv("LISTEND_HEALTH_ACTIVATE", "true")

	conf, err := readConfig(newViper(), "")
	if err != nil {
		t.Fatalf("readConfig returned error: %v", err)
	}
	if conf.Backlog != 32 {
		t.Errorf("Expected backlog 32, got %d instead", conf.Backlog)
	}
	if conf.Family != bind.FamilyIPv6 {
		t.Errorf("Expected family %v, got %v instead", bind.FamilyIPv6, conf.Family)
	}
	if !conf.Health.Activate {
		t.Error("Expected health server to be activated")
	}
}

func TestReadConfigInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "Unknown verbosity", content: `{"verbosity": "loud"}`},
		{name: "Zero backlog", content: `{"backlog": 0}`},
		{name: "Status port out of range", content: `{"status": {"port": 70000}}`},
		{name: "Unknown family", content: `{"family": "ipx"}`},
		{name: "Bad duration", content: `{"shutdownTimeout": "soon"}`},
		{name: "Malformed file", content: `{"backlog": `},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readConfig(newViper(), writeConfig(t, "listend.json", tc.content))
			if err == nil {
				t.Fatal("Expected error, got nil instead")
			}
			var confErr *configError
			if !errors.As(err, &confErr) {
				t.Errorf("Expected *configError, got %T instead", err)
			}
			if code := exitCode(err); code != exitInvalid {
				t.Errorf("Expected exit code %d, got %d instead", exitInvalid, code)
			}
		})
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := readConfig(newViper(), filepath.Join(t.TempDir(), "absent.json"))
	var confErr *configError
	if !errors.As(err, &confErr) {
		t.Errorf("Expected *configError, got %v instead", err)
	}
}
