package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ipsweep/backend/config"
	"ipsweep/backend/constant/event"
	"ipsweep/backend/constant/status"
	"ipsweep/backend/database"
	"ipsweep/backend/database/repository"
	"ipsweep/backend/exporter"
	sweepscan "ipsweep/backend/scanner/sweep"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// evenHosts answers for every even host number and names .2 "gateway".
func evenHosts() sweepscan.Prober {
	return sweepscan.ProberFunc(func(ctx context.Context, address string) (sweepscan.Observation, bool) {
		last := address[strings.LastIndex(address, ".")+1:]
		switch last[len(last)-1] {
		case '0', '2', '4', '6', '8':
		default:
			return sweepscan.Observation{}, false
		}
		name := sweepscan.DefaultUnknownHost
		if last == "2" {
			name = "gateway"
		}
		return sweepscan.Observation{Address: address, DisplayName: name, ObservedAt: time.Now()}, true
	})
}

func newTestManager(t *testing.T, prober sweepscan.Prober, bus *event.Bus) (*Manager, repository.ExportLogRepository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	repo := repository.NewExportLogRepository(db)
	engine := sweepscan.NewEngine(sweepscan.DefaultOptions{}, sweepscan.WithProber(prober), sweepscan.WithLogger(quietLogger()))
	return NewManager(engine, ManagerOptions{
		Logger:     quietLogger(),
		Events:     bus,
		ExportDir:  filepath.Join(t.TempDir(), "export"),
		ExportLogs: repo,
	}), repo
}

func waitTask(t *testing.T, m *Manager, id int64) *Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	task, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return task
}

func TestManagerRunsTaskToCompletion(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var streamed []string
	var final *TaskEvent
	bus.On(event.SweepObservation, func(d event.EventDetail) {
		payload := d.Data.(TaskEvent)
		mu.Lock()
		streamed = append(streamed, payload.Observation.Address)
		mu.Unlock()
	})
	bus.On(event.SweepTaskUpdate, func(d event.EventDetail) {
		payload := d.Data.(TaskEvent)
		if payload.Message == "completed" {
			mu.Lock()
			final = &payload
			mu.Unlock()
		}
	})

	m, _ := newTestManager(t, evenHosts(), bus)
	task, err := m.StartTask(sweepscan.ScanParams{Prefix: "10.0.0.", Workers: 8})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if task.Status != status.Running || task.Metrics.Planned != 254 {
		t.Fatalf("unexpected initial task %+v", task)
	}

	done := waitTask(t, m, task.ID)
	if done.Status != status.OK {
		t.Fatalf("expected status OK, got %d (%s)", done.Status, done.Error)
	}
	if done.Metrics.ResultCount != 127 {
		t.Fatalf("expected 127 responders, got %d", done.Metrics.ResultCount)
	}
	if done.Params.Timeout != sweepscan.DefaultTimeout || done.Params.UnknownHost != sweepscan.DefaultUnknownHost {
		t.Fatalf("defaults not applied to params: %+v", done.Params)
	}

	results, err := m.Results(task.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(streamed) != len(results) {
		t.Fatalf("streamed %d observations, accumulated %d", len(streamed), len(results))
	}
	for i := range results {
		if results[i].Address != streamed[i] {
			t.Fatalf("accumulation order differs from delivery order at %d", i)
		}
	}
	if final == nil || final.Status != status.OK {
		t.Fatalf("missing completion event, got %+v", final)
	}
}

func TestManagerRejectsEmptyPrefix(t *testing.T) {
	m, _ := newTestManager(t, evenHosts(), nil)
	if _, err := m.StartTask(sweepscan.ScanParams{Prefix: "  "}); err != ErrEmptyPrefix {
		t.Fatalf("expected ErrEmptyPrefix, got %v", err)
	}
	if len(m.ListTasks()) != 0 {
		t.Fatalf("no task should be registered")
	}
}

func TestManagerStopTask(t *testing.T) {
	started := make(chan struct{}, 1)
	blocking := sweepscan.ProberFunc(func(ctx context.Context, address string) (sweepscan.Observation, bool) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return sweepscan.Observation{}, false
	})
	m, _ := newTestManager(t, blocking, nil)
	task, err := m.StartTask(sweepscan.ScanParams{Prefix: "10.0.1.", Workers: 4})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	<-started

	if _, err := m.Export(task.ID, ""); err != ErrTaskRunning {
		t.Fatalf("expected ErrTaskRunning, got %v", err)
	}
	if err := m.StopTask(task.ID); err != nil {
		t.Fatalf("StopTask failed: %v", err)
	}
	done := waitTask(t, m, task.ID)
	if done.Status != status.Stopped {
		t.Fatalf("expected status Stopped, got %d", done.Status)
	}
	if err := m.StopTask(task.ID); err == nil {
		t.Fatalf("stopping a settled task should fail")
	}
}

func TestManagerExport(t *testing.T) {
	m, repo := newTestManager(t, evenHosts(), nil)
	task, err := m.StartTask(sweepscan.ScanParams{Prefix: "10.0.2.", FirstHost: 1, LastHost: 6})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	waitTask(t, m, task.ID)

	written, err := m.Export(task.ID, "")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Ext(written) != ".xlsx" {
		t.Fatalf("unexpected export path %q", written)
	}
	rows, err := exporter.ReadXLSX(written)
	if err != nil {
		t.Fatalf("ReadXLSX failed: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != exporter.Header[0] {
		t.Fatalf("expected header plus 3 rows, got %v", rows)
	}

	logs, err := repo.ListByTask(task.ID)
	if err != nil {
		t.Fatalf("ListByTask failed: %v", err)
	}
	if len(logs) != 1 || logs[0].RowCount != 3 || logs[0].Filename != filepath.Base(written) {
		t.Fatalf("unexpected export log %+v", logs)
	}
	if !strings.Contains(string(logs[0].Params), `"prefix":"10.0.2."`) {
		t.Fatalf("scan parameters not recorded: %s", logs[0].Params)
	}
	got, _ := m.GetTask(task.ID)
	if got.ExportFile != written {
		t.Fatalf("task export file not recorded: %q", got.ExportFile)
	}
}

func TestManagerExportWithoutResponders(t *testing.T) {
	silent := sweepscan.ProberFunc(func(ctx context.Context, address string) (sweepscan.Observation, bool) {
		return sweepscan.Observation{}, false
	})
	m, repo := newTestManager(t, silent, nil)
	task, err := m.StartTask(sweepscan.ScanParams{Prefix: "10.0.3.", LastHost: 10})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	waitTask(t, m, task.ID)

	if _, err := m.Export(task.ID, filepath.Join(t.TempDir(), "empty")); err != exporter.ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if logs, _ := repo.List(0); len(logs) != 0 {
		t.Fatalf("no export should be recorded, got %+v", logs)
	}
}

type unavailableProber struct{}

func (unavailableProber) Probe(ctx context.Context, address string) (sweepscan.Observation, bool) {
	return sweepscan.Observation{}, false
}

func (unavailableProber) Check(ctx context.Context) error {
	return errors.New("open udp4 icmp socket: permission denied")
}

func TestManagerReportsProbeSetupFailure(t *testing.T) {
	m, _ := newTestManager(t, unavailableProber{}, nil)
	task, err := m.StartTask(sweepscan.ScanParams{Prefix: "127.0.0."})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	done := waitTask(t, m, task.ID)
	if done.Status != status.Error {
		t.Fatalf("expected status Error, got %d", done.Status)
	}
	if !strings.Contains(done.Error, "permission denied") {
		t.Fatalf("setup error not surfaced: %q", done.Error)
	}
}

func TestManagerUnknownTask(t *testing.T) {
	m, _ := newTestManager(t, evenHosts(), nil)
	if _, err := m.GetTask(42); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := m.Results(42); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := m.Wait(context.Background(), 42); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestDefaultOptionsFromConfig(t *testing.T) {
	opts := defaultOptionsFromConfig(config.Sweep{
		Timeout:     time.Second,
		Workers:     12,
		FirstHost:   10,
		LastHost:    20,
		Method:      "exec",
		DNS:         []string{"10.0.0.53"},
		UnknownHost: "?",
		MaxPPS:      50,
	})
	if opts.Timeout != time.Second || opts.Workers != 12 || opts.FirstHost != 10 || opts.LastHost != 20 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Method != sweepscan.ProbeMethodExec || opts.UnknownHost != "?" || opts.MaxPPS != 50 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if len(opts.DNSServers) != 1 || opts.DNSServers[0] != "10.0.0.53" {
		t.Fatalf("unexpected dns servers %v", opts.DNSServers)
	}
}
