package sweep

import (
	"context"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/yitter/idgenerator-go/idgen"
	"gorm.io/datatypes"

	"ipsweep/backend/constant/event"
	"ipsweep/backend/constant/status"
	"ipsweep/backend/database/models"
	"ipsweep/backend/database/repository"
	"ipsweep/backend/exporter"
	sweepscan "ipsweep/backend/scanner/sweep"
	"ipsweep/backend/service/model/exportlog"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is still running")
	ErrEmptyPrefix  = errors.New("network prefix is required")
)

var idOnce sync.Once

func nextTaskID() int64 {
	idOnce.Do(func() {
		idgen.SetIdGenerator(idgen.NewIdGeneratorOptions(1))
	})
	return idgen.NextId()
}

type runtimeState struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type ManagerOptions struct {
	Logger *logrus.Logger
	Events *event.Bus
	// ExportDir receives workbooks exported without an explicit path.
	ExportDir  string
	ExportLogs repository.ExportLogRepository
}

// Manager coordinates sweep tasks and pushes their observations and progress
// through the event bus.
type Manager struct {
	engine *sweepscan.Engine
	opts   ManagerOptions

	mu           sync.RWMutex
	tasks        map[int64]*Task
	observations map[int64][]sweepscan.Observation
	runtimes     map[int64]*runtimeState
	done         map[int64]chan struct{}
}

func NewManager(engine *sweepscan.Engine, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Manager{
		engine:       engine,
		opts:         opts,
		tasks:        make(map[int64]*Task),
		observations: make(map[int64][]sweepscan.Observation),
		runtimes:     make(map[int64]*runtimeState),
		done:         make(map[int64]chan struct{}),
	}
}

// StartTask launches a sweep in the background and returns its initial state.
func (m *Manager) StartTask(params sweepscan.ScanParams) (task *Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.opts.Logger.Errorf("panic in sweep StartTask: %v\n%s", r, string(debug.Stack()))
			err = errors.New("sweep start task panic")
		}
	}()

	params.Prefix = strings.TrimSpace(params.Prefix)
	if params.Prefix == "" {
		return nil, ErrEmptyPrefix
	}
	params = params.WithDefaults(m.engine.Defaults())

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	taskID := nextTaskID()
	task = &Task{
		ID:        taskID,
		Status:    status.Running,
		CreatedAt: now,
		StartedAt: now,
		Params:    params,
		Metrics:   TaskMetrics{Planned: params.HostCount()},
	}
	rt := &runtimeState{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[taskID] = task
	m.runtimes[taskID] = rt
	m.done[taskID] = rt.done
	metrics := task.Metrics
	m.mu.Unlock()

	m.opts.Logger.WithFields(logrus.Fields{
		"task":    taskID,
		"prefix":  params.Prefix,
		"planned": metrics.Planned,
		"workers": params.Workers,
		"method":  params.Method,
	}).Info("sweep started")
	m.emit(event.SweepTaskUpdate, taskID, status.Running, metrics, nil, "started", "")

	go m.run(ctx, task, rt)

	return cloneTask(task), nil
}

func (m *Manager) run(ctx context.Context, task *Task, rt *runtimeState) {
	defer close(rt.done)
	taskID := task.ID

	progressCh := make(chan sweepscan.Progress, 16)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for prog := range progressCh {
			m.mu.Lock()
			task.Metrics.Planned = prog.Planned
			task.Metrics.Dispatched = prog.Dispatched
			task.Metrics.Completed = prog.Completed
			task.Metrics.Active = prog.Active
			task.Metrics.PPS = prog.PPS
			task.Metrics.UptimeMs = prog.UptimeMs
			metrics := task.Metrics
			m.mu.Unlock()
			m.emit(event.SweepTaskUpdate, taskID, status.Running, metrics, nil, "", "")
		}
	}()

	sink := func(o sweepscan.Observation) {
		m.mu.Lock()
		m.observations[taskID] = append(m.observations[taskID], o)
		task.Metrics.ResultCount++
		task.Metrics.LastResult = time.Now()
		metrics := task.Metrics
		m.mu.Unlock()
		m.emit(event.SweepObservation, taskID, status.Running, metrics, &o, "", "")
	}

	var scanErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.opts.Logger.Errorf("panic in sweep task %d: %v\n%s", taskID, r, string(debug.Stack()))
				scanErr = errors.Errorf("sweep panic: %v", r)
			}
		}()
		_, scanErr = m.engine.ScanWithProgress(ctx, task.Params, sink, progressCh)
	}()
	close(progressCh)
	<-consumed

	m.mu.Lock()
	delete(m.runtimes, taskID)
	task.CompletedAt = time.Now()
	switch {
	case scanErr != nil && !errors.Is(scanErr, context.Canceled):
		task.Status = status.Error
		task.Error = scanErr.Error()
	case ctx.Err() == context.Canceled:
		task.Status = status.Stopped
	default:
		task.Status = status.OK
	}
	finalStatus := task.Status
	finalError := task.Error
	metrics := task.Metrics
	m.mu.Unlock()
	rt.cancel()

	entry := m.opts.Logger.WithFields(logrus.Fields{
		"task":      taskID,
		"responded": metrics.ResultCount,
		"status":    status.Text(finalStatus),
	})
	if finalError != "" {
		entry.Error(finalError)
	} else {
		entry.Info("sweep completed")
	}
	m.emit(event.SweepTaskUpdate, taskID, finalStatus, metrics, nil, "completed", finalError)
}

func (m *Manager) StopTask(taskID int64) error {
	m.mu.RLock()
	rt, ok := m.runtimes[taskID]
	m.mu.RUnlock()
	if !ok {
		return errors.New("task not running or does not exist")
	}
	rt.cancel()
	return nil
}

// Wait blocks until the task settles or ctx is done.
func (m *Manager) Wait(ctx context.Context, taskID int64) (*Task, error) {
	m.mu.RLock()
	done, ok := m.done[taskID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	select {
	case <-done:
		return m.GetTask(taskID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) GetTask(taskID int64) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

func (m *Manager) ListTasks() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		list = append(list, cloneTask(task))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Results returns the observations gathered so far, in arrival order.
func (m *Manager) Results(taskID int64) ([]sweepscan.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tasks[taskID]; !ok {
		return nil, ErrTaskNotFound
	}
	return append([]sweepscan.Observation(nil), m.observations[taskID]...), nil
}

// Export writes the observations of a settled task to an xlsx workbook and
// returns the written path. An empty path places a timestamped file in the
// export directory. exporter.ErrNoData is returned when no host responded.
func (m *Manager) Export(taskID int64, path string) (string, error) {
	m.mu.RLock()
	task, ok := m.tasks[taskID]
	_, running := m.runtimes[taskID]
	var params sweepscan.ScanParams
	if ok {
		params = task.Params
	}
	rows := append([]sweepscan.Observation(nil), m.observations[taskID]...)
	m.mu.RUnlock()
	if !ok {
		return "", ErrTaskNotFound
	}
	if running {
		return "", ErrTaskRunning
	}

	if strings.TrimSpace(path) == "" {
		path = filepath.Join(m.opts.ExportDir, exporter.DefaultFileName(time.Now()))
	}
	written, err := exporter.WriteXLSX(path, rows)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	task.ExportFile = written
	metrics := task.Metrics
	finalStatus := task.Status
	m.mu.Unlock()

	if m.opts.ExportLogs != nil {
		rawParams, err := json.Marshal(params)
		if err != nil {
			m.opts.Logger.Warnf("encode params of task %d: %v", taskID, err)
		}
		item := &models.ExportLog{Item: exportlog.Item{
			TaskID:   taskID,
			Prefix:   params.Prefix,
			Params:   datatypes.JSON(rawParams),
			Filename: filepath.Base(written),
			Dir:      filepath.Dir(written),
			RowCount: len(rows),
		}}
		if err := m.opts.ExportLogs.Create(item); err != nil {
			m.opts.Logger.Warnf("record export of task %d: %v", taskID, err)
		}
	}
	m.opts.Logger.WithFields(logrus.Fields{"task": taskID, "rows": len(rows)}).Info("exported to " + written)
	m.emit(event.SweepTaskUpdate, taskID, finalStatus, metrics, nil, "exported", "")
	return written, nil
}

func (m *Manager) UpdateDefaults(opts sweepscan.DefaultOptions) {
	m.engine.UpdateDefaults(opts)
}

func (m *Manager) emit(name string, taskID int64, statusCode int, metrics TaskMetrics, observation *sweepscan.Observation, message, errMsg string) {
	payload := TaskEvent{
		TaskID:      taskID,
		Status:      statusCode,
		Observation: observation,
		Metrics:     metrics,
		Message:     message,
		Error:       errMsg,
	}
	m.opts.Events.EmitV2(name, event.EventDetail{
		ID:      taskID,
		Status:  statusCode,
		Message: message,
		Error:   errMsg,
		Data:    payload,
	})
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Params.DNSServers = append([]string(nil), t.Params.DNSServers...)
	return &cp
}
