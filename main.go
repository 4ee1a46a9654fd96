package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/goflags"
	"github.com/sirupsen/logrus"

	"ipsweep/backend/application"
	"ipsweep/backend/config"
	"ipsweep/backend/constant/event"
	"ipsweep/backend/constant/status"
	"ipsweep/backend/exporter"
	"ipsweep/backend/netutil"
	sweepscan "ipsweep/backend/scanner/sweep"
	sweepService "ipsweep/backend/service/service/sweep"
)

type options struct {
	Prefix    string
	Auto      bool
	Output    string
	Export    bool
	Timeout   time.Duration
	Workers   int
	FirstHost int
	LastHost  int
	Method    string
	DNS       goflags.StringSlice
	MaxPPS    int
	AppDir    string
	JSON      bool
	History   bool
	Save      bool
	Verbose   bool
	Version   bool
}

func parseOptions() *options {
	opts := &options{}
	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription("ipsweep probes every host of an IPv4 /24 prefix and lists the ones that answer")

	flagSet.CreateGroup("target", "Target",
		flagSet.StringVarP(&opts.Prefix, "prefix", "p", "", "network prefix to sweep, e.g. 172.16.5. (defaults to the configured prefix)"),
		flagSet.BoolVarP(&opts.Auto, "auto", "a", false, "sweep every local /24 prefix found on this host"),
		flagSet.IntVarP(&opts.FirstHost, "first", "fh", 0, "first host number"),
		flagSet.IntVarP(&opts.LastHost, "last", "lh", 0, "last host number"),
	)
	flagSet.CreateGroup("probe", "Probe",
		flagSet.DurationVarP(&opts.Timeout, "timeout", "t", 0, "per host timeout"),
		flagSet.IntVarP(&opts.Workers, "workers", "w", 0, "maximum concurrent probes"),
		flagSet.StringVarP(&opts.Method, "method", "m", "", "probe method (icmp, icmp-raw, exec)"),
		flagSet.StringSliceVar(&opts.DNS, "dns", nil, "dns servers used for reverse lookups (comma separated)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.IntVar(&opts.MaxPPS, "rate", 0, "maximum probes started per second"),
	)
	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&opts.Output, "output", "o", "", "export responding hosts to this xlsx file"),
		flagSet.BoolVarP(&opts.Export, "export", "e", false, "export to a timestamped file in the export directory"),
		flagSet.BoolVarP(&opts.JSON, "json", "j", false, "print observations as json lines"),
		flagSet.BoolVar(&opts.History, "history", false, "list recent exports then exit"),
	)
	flagSet.CreateGroup("config", "Config",
		flagSet.StringVarP(&opts.AppDir, "app-dir", "ad", application.DefaultAppDir(), "directory holding config.yaml and data"),
		flagSet.BoolVarP(&opts.Save, "save-defaults", "sd", false, "store the given target and probe flags in config.yaml then exit"),
		flagSet.BoolVarP(&opts.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&opts.Version, "version", false, "show version"),
	)

	if err := flagSet.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return opts
}

func main() {
	opts := parseOptions()
	if opts.Version {
		fmt.Println(application.Version)
		return
	}
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	app, err := application.New(opts.AppDir)
	if err != nil {
		return err
	}
	defer app.Close()
	if opts.Verbose {
		app.Logger.SetLevel(logrus.DebugLevel)
	}

	bridge := sweepService.NewBridge(app)
	if opts.History {
		return printHistory(bridge)
	}
	if opts.Save {
		cfg := applyOverrides(bridge.GetDefaults(), opts)
		if err := bridge.SaveDefaults(cfg); err != nil {
			return err
		}
		fmt.Println("defaults saved to", app.ConfigFile)
		return nil
	}

	prefixes, err := targetPrefixes(opts, app.Config.Sweep.Prefix)
	if err != nil {
		return err
	}

	app.Events.On(event.SweepObservation, func(detail event.EventDetail) {
		payload, ok := detail.Data.(sweepService.TaskEvent)
		if !ok || payload.Observation == nil {
			return
		}
		printObservation(*payload.Observation, opts.JSON)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, prefix := range prefixes {
		if ctx.Err() != nil {
			break
		}
		task, err := bridge.StartTask(sweepscan.ScanParams{
			Prefix:     prefix,
			Timeout:    opts.Timeout,
			Workers:    opts.Workers,
			FirstHost:  opts.FirstHost,
			LastHost:   opts.LastHost,
			Method:     sweepscan.ProbeMethod(opts.Method),
			DNSServers: opts.DNS,
			MaxPPS:     opts.MaxPPS,
		})
		if err != nil {
			return err
		}
		if !opts.JSON {
			fmt.Printf("sweeping %s%d-%d with %d workers\n", prefix, task.Params.FirstHost, task.Params.LastHost, task.Params.Workers)
		}

		go func(id int64) {
			<-ctx.Done()
			_ = bridge.StopTask(id)
		}(task.ID)

		done, err := bridge.Wait(context.Background(), task.ID)
		if err != nil {
			return err
		}
		results, err := bridge.Results(task.ID)
		if err != nil {
			return err
		}
		if !opts.JSON {
			elapsed := done.CompletedAt.Sub(done.StartedAt).Round(time.Millisecond)
			fmt.Printf("%s: %d of %d hosts responded in %s (%s)\n", prefix, len(results), done.Metrics.Planned, elapsed, status.Text(done.Status))
		}
		if done.Status == status.Error {
			return errors.New(done.Error)
		}

		path := exportPath(opts, len(prefixes), prefix)
		if path == "" && !opts.Export {
			continue
		}
		written, err := bridge.Export(task.ID, path)
		if errors.Is(err, exporter.ErrNoData) {
			app.Logger.Warnf("nothing to export for %s", prefix)
			continue
		}
		if err != nil {
			return err
		}
		if !opts.JSON {
			fmt.Println("exported to", written)
		}
	}
	return nil
}

// applyOverrides copies the target and probe flags that were set onto cfg.
func applyOverrides(cfg config.Sweep, opts *options) config.Sweep {
	if prefix := strings.TrimSpace(opts.Prefix); prefix != "" {
		cfg.Prefix = prefix
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.FirstHost > 0 {
		cfg.FirstHost = opts.FirstHost
	}
	if opts.LastHost > 0 {
		cfg.LastHost = opts.LastHost
	}
	if opts.Method != "" {
		cfg.Method = opts.Method
	}
	if len(opts.DNS) > 0 {
		cfg.DNS = append([]string(nil), opts.DNS...)
	}
	if opts.MaxPPS > 0 {
		cfg.MaxPPS = opts.MaxPPS
	}
	return cfg
}

func targetPrefixes(opts *options, configured string) ([]string, error) {
	if opts.Auto {
		prefixes, err := netutil.LocalPrefixes(context.Background())
		if err != nil {
			return nil, err
		}
		if len(prefixes) == 0 {
			return nil, errors.New("no local IPv4 network found")
		}
		return prefixes, nil
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = strings.TrimSpace(configured)
	}
	if prefix == "" {
		return nil, errors.New("a network prefix is required")
	}
	return []string{prefix}, nil
}

// exportPath derives one file per prefix when several are swept into -output.
func exportPath(opts *options, total int, prefix string) string {
	if opts.Output == "" || total == 1 {
		return opts.Output
	}
	base := strings.TrimSuffix(opts.Output, ".xlsx")
	return fmt.Sprintf("%s_%s.xlsx", base, strings.TrimSuffix(strings.ReplaceAll(prefix, ".", "_"), "_"))
}

func printObservation(o sweepscan.Observation, asJSON bool) {
	if asJSON {
		line, err := json.Marshal(struct {
			Address   string `json:"address"`
			Hostname  string `json:"hostname"`
			Timestamp string `json:"timestamp"`
		}{o.Address, o.DisplayName, o.Timestamp()})
		if err != nil {
			return
		}
		fmt.Println(string(line))
		return
	}
	fmt.Printf("%-16s %-40s %s\n", o.Address, o.DisplayName, o.Timestamp())
}

func printHistory(bridge *sweepService.Bridge) error {
	items, err := bridge.ExportHistory(20)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("%s  %-16s %4d rows  %s\n", item.CreatedAt.Format(sweepscan.TimeLayout), item.Prefix, item.RowCount, item.Path())
	}
	return nil
}
