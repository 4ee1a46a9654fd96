package application

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"ipsweep/backend/config"
	"ipsweep/backend/constant/event"
	"ipsweep/backend/database"
	"ipsweep/backend/logger"
	sweepscan "ipsweep/backend/scanner/sweep"
)

const Version = "1.2.0"

func init() {
	ini.PrettyFormat = false
}

var iniOptions = ini.LoadOptions{
	SkipUnrecognizableLines:  true,
	SpaceBeforeInlineComment: true,
	AllowShadows:             true,
}

func defaultConfig(appDir string) *config.Config {
	return &config.Config{
		Version:       Version,
		DatabaseFile:  filepath.Join(appDir, "data", "data.db"),
		ExportDataDir: filepath.Join(appDir, "data", "export"),
		LogDataDir:    filepath.Join(appDir, "data", "log"),
		Sweep: config.Sweep{
			Prefix:      "172.16.5.",
			Timeout:     sweepscan.DefaultTimeout,
			Workers:     sweepscan.DefaultWorkers,
			FirstHost:   sweepscan.DefaultFirstHost,
			LastHost:    sweepscan.DefaultLastHost,
			Method:      string(sweepscan.ProbeMethodICMP),
			UnknownHost: sweepscan.DefaultUnknownHost,
		},
	}
}

type Application struct {
	Config     *config.Config
	ConfigFile string
	AppDir     string
	Logger     *logrus.Logger
	Events     *event.Bus
	DB         *gorm.DB
}

// DefaultAppDir is ~/.ipsweep, or the executable's directory when the home
// directory is unknown.
func DefaultAppDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ipsweep")
	}
	return filepath.Dir(os.Args[0])
}

// New loads or generates appDir/config.yaml, converting a legacy config.ini
// when one is found, and opens the database.
func New(appDir string) (*Application, error) {
	r := &Application{
		Config:     &config.Config{},
		ConfigFile: filepath.Join(appDir, "config.yaml"),
		AppDir:     appDir,
		Events:     event.NewBus(),
	}
	legacy := filepath.Join(appDir, "config.ini")
	var err error
	switch {
	case fileExist(r.ConfigFile):
		err = r.loadConfigFile()
	case fileExist(legacy):
		err = r.transformConfigFile(legacy)
	default:
		err = r.generateConfigFile()
	}
	if err != nil {
		return nil, err
	}
	db, err := database.Open(r.Config.DatabaseFile)
	if err != nil {
		return nil, err
	}
	r.DB = db
	return r, nil
}

func (r *Application) transformConfigFile(legacy string) error {
	cfg, err := ini.LoadSources(iniOptions, legacy)
	if err != nil {
		return errors.Wrap(err, "can't open config file")
	}
	*r.Config = *defaultConfig(r.AppDir)
	r.Config.Version = ""
	if err = cfg.MapTo(r.Config); err != nil {
		return errors.Wrap(err, "can't map config file")
	}
	if err = cfg.Section("sweep").MapTo(&r.Config.Sweep); err != nil {
		return errors.Wrap(err, "can't map sweep section")
	}
	if err := r.WriteConfig(r.Config); err != nil {
		return err
	}
	r.Logger = logger.NewWithLogDir(r.Config.LogDataDir)
	if err := os.Remove(legacy); err != nil {
		r.Logger.Error(err)
	}
	return r.loadConfigFile()
}

func (r *Application) loadConfigFile() error {
	readData, err := os.ReadFile(r.ConfigFile)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(readData, r.Config); err != nil {
		return errors.Wrap(err, "can't parse config file")
	}
	needUpdate := false
	if r.Config.LogDataDir == "" {
		r.Config.LogDataDir = filepath.Join(r.AppDir, "data", "log")
		needUpdate = true
	}
	if r.Config.DatabaseFile == "" {
		r.Config.DatabaseFile = filepath.Join(r.AppDir, "data", "data.db")
		needUpdate = true
	}
	r.Logger = logger.NewWithLogDir(r.Config.LogDataDir)
	if r.Config.ExportDataDir == "" {
		r.Config.ExportDataDir = filepath.Join(r.AppDir, "data", "export")
		needUpdate = true
	}
	if r.Config.Sweep.Timeout <= 0 {
		r.Config.Sweep.Timeout = sweepscan.DefaultTimeout
		needUpdate = true
	}
	if r.Config.Sweep.Workers <= 0 {
		r.Config.Sweep.Workers = sweepscan.DefaultWorkers
		needUpdate = true
	}
	if r.Config.Sweep.FirstHost <= 0 || r.Config.Sweep.LastHost <= 0 {
		r.Config.Sweep.FirstHost = sweepscan.DefaultFirstHost
		r.Config.Sweep.LastHost = sweepscan.DefaultLastHost
		needUpdate = true
	}
	if r.Config.Sweep.UnknownHost == "" {
		r.Config.Sweep.UnknownHost = sweepscan.DefaultUnknownHost
		needUpdate = true
	}

	currentVersion, _ := version.NewVersion(Version)
	configFileVersion, err := version.NewVersion(r.Config.Version)
	if err != nil || currentVersion.GreaterThan(configFileVersion) {
		r.Logger.Infof("upgrading config file from version %q to %s", r.Config.Version, Version)
		r.Config.Version = Version
		needUpdate = true
	}
	if needUpdate {
		if err := r.WriteConfig(r.Config); err != nil {
			r.Logger.Error("can't update config file: " + err.Error())
		}
	}
	return nil
}

func (r *Application) generateConfigFile() error {
	r.Config = defaultConfig(r.AppDir)
	r.Logger = logger.NewWithLogDir(r.Config.LogDataDir)
	r.Logger.Info("config file not found, generating default config file...")
	if err := r.WriteConfig(r.Config); err != nil {
		return errors.Wrap(err, "can't generate default config file")
	}
	r.Logger.Info("generate default config file successfully, locate at " + r.ConfigFile)
	return nil
}

func (r *Application) WriteConfig(conf *config.Config) error {
	bytes, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.ConfigFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.ConfigFile, bytes, 0o644)
}

// Close releases the database and emits AppExit.
func (r *Application) Close() error {
	r.Events.EmitV2(event.AppExit, event.EventDetail{Message: "exit", Data: time.Now()})
	return database.Close(r.DB)
}

func fileExist(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
