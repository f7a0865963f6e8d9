package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults_Node(t *testing.T) {
	t.Parallel()

	cfg := Config{Node: &NodeConfig{ID: 1, NATSURL: "nats://127.0.0.1:4222"}, Schedule: &ScheduleConfig{}}
	ApplyDefaults(&cfg)

	if cfg.Node.Listen != DefaultListen {
		t.Fatalf("listen=%q", cfg.Node.Listen)
	}
	if cfg.Node.StatusUpdatePeriodSec != DefaultStatusUpdatePeriodSec {
		t.Fatalf("period=%v", cfg.Node.StatusUpdatePeriodSec)
	}
	if cfg.Node.NATSSubject != DefaultNATSSubject {
		t.Fatalf("subject=%q", cfg.Node.NATSSubject)
	}
	if cfg.Schedule.Policy != DefaultSchedulePolicy || cfg.Schedule.Separation != 1 || cfg.Schedule.PeriodSec != DefaultSchedulePeriodSec {
		t.Fatalf("schedule=%+v", cfg.Schedule)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{Node: &NodeConfig{}}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing id")
	}

	cfg.Node.ID = 3
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	cfg.Node.Gateway = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for gateway without schedule")
	}

	cfg.Schedule = &ScheduleConfig{Policy: "tdma"}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	cfg.Schedule.Policy = "fair"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestSave_Writes0600(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "node.yaml")
	cfg := Config{Node: &NodeConfig{ID: 2, Peer: "10.0.0.1"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Node == nil || loaded.Node.ID != 2 || loaded.Node.Peer != "10.0.0.1" || loaded.Node.Listen != DefaultListen {
		t.Fatalf("loaded=%+v", loaded.Node)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "node.yaml")
	data := `node:
  id: 7
  peer: 192.168.1.10:8889
  gateway: true
  frequency: 1.0e9
  bandwidth: 5.0e6
  location:
    latitude: 39.9
    longitude: -75.2
schedule:
  policy: fair
  channels: 4
  slots: 2
  separation: 3
log:
  file: /tmp/meshctl.log
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Node.Location.Longitude != -75.2 || cfg.Schedule.Separation != 3 {
		t.Fatalf("node=%+v schedule=%+v", cfg.Node, cfg.Schedule)
	}
	if cfg.Log.MaxBackups != DefaultLogMaxBackups {
		t.Fatalf("log=%+v", cfg.Log)
	}
}
