package sweep

import (
	"testing"
	"time"

	"ipsweep/backend/application"
	sweepscan "ipsweep/backend/scanner/sweep"
)

func TestBridgeSaveDefaults(t *testing.T) {
	dir := t.TempDir()
	app, err := application.New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	app.Logger = quietLogger()
	bridge := NewBridge(app)

	cfg := bridge.GetDefaults()
	if cfg.Workers != sweepscan.DefaultWorkers {
		t.Fatalf("unexpected initial defaults %+v", cfg)
	}
	cfg.Workers = 12
	cfg.Timeout = time.Second
	cfg.Method = "exec"
	if err := bridge.SaveDefaults(cfg); err != nil {
		t.Fatalf("SaveDefaults failed: %v", err)
	}

	applied := bridge.manager.engine.Defaults()
	if applied.Workers != 12 || applied.Timeout != time.Second || applied.Method != sweepscan.ProbeMethodExec {
		t.Fatalf("engine defaults not updated: %+v", applied)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := application.New(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Config.Sweep; got.Workers != 12 || got.Timeout != time.Second || got.Method != "exec" {
		t.Fatalf("defaults not persisted: %+v", got)
	}
}
