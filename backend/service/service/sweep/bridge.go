package sweep

import (
	"context"

	"ipsweep/backend/application"
	"ipsweep/backend/config"
	"ipsweep/backend/database/models"
	"ipsweep/backend/database/repository"
	sweepscan "ipsweep/backend/scanner/sweep"
)

// Bridge binds the sweep manager to the application configuration.
type Bridge struct {
	app        *application.Application
	manager    *Manager
	exportLogs repository.ExportLogRepository
}

func NewBridge(app *application.Application) *Bridge {
	engine := sweepscan.NewEngine(defaultOptionsFromConfig(app.Config.Sweep), sweepscan.WithLogger(app.Logger))
	exportLogs := repository.NewExportLogRepository(app.DB)
	return &Bridge{
		app:        app,
		exportLogs: exportLogs,
		manager: NewManager(engine, ManagerOptions{
			Logger:     app.Logger,
			Events:     app.Events,
			ExportDir:  app.Config.ExportDataDir,
			ExportLogs: exportLogs,
		}),
	}
}

func (b *Bridge) StartTask(params sweepscan.ScanParams) (*Task, error) {
	return b.manager.StartTask(params)
}

func (b *Bridge) StopTask(taskID int64) error {
	return b.manager.StopTask(taskID)
}

func (b *Bridge) Wait(ctx context.Context, taskID int64) (*Task, error) {
	return b.manager.Wait(ctx, taskID)
}

func (b *Bridge) Results(taskID int64) ([]sweepscan.Observation, error) {
	return b.manager.Results(taskID)
}

func (b *Bridge) Export(taskID int64, path string) (string, error) {
	return b.manager.Export(taskID, path)
}

func (b *Bridge) ExportHistory(limit int) ([]models.ExportLog, error) {
	return b.exportLogs.List(limit)
}

func (b *Bridge) GetDefaults() config.Sweep {
	return b.app.Config.Sweep
}

// SaveDefaults persists cfg and applies it to tasks started afterwards.
func (b *Bridge) SaveDefaults(cfg config.Sweep) error {
	b.app.Config.Sweep = cfg
	if err := b.app.WriteConfig(b.app.Config); err != nil {
		b.app.Logger.Error(err)
		return err
	}
	b.manager.UpdateDefaults(defaultOptionsFromConfig(cfg))
	return nil
}

func defaultOptionsFromConfig(cfg config.Sweep) sweepscan.DefaultOptions {
	return sweepscan.DefaultOptions{
		Timeout:     cfg.Timeout,
		Workers:     cfg.Workers,
		FirstHost:   cfg.FirstHost,
		LastHost:    cfg.LastHost,
		Method:      sweepscan.ProbeMethod(cfg.Method),
		DNSServers:  append([]string(nil), cfg.DNS...),
		UnknownHost: cfg.UnknownHost,
		MaxPPS:      cfg.MaxPPS,
	}
}
