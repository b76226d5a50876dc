package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sentrylabs/fim/cmd"
	"github.com/sentrylabs/fim/pkg/fim"
	"github.com/sentrylabs/fim/pkg/fim/config"
	"github.com/sentrylabs/fim/pkg/fim/realtime"
	"github.com/sentrylabs/fim/pkg/fim/sink"
	"github.com/sentrylabs/fim/pkg/filesystem"
	"github.com/sentrylabs/fim/pkg/logging"
	"github.com/sentrylabs/fim/pkg/must"
	"github.com/sentrylabs/fim/pkg/timeutil"
)

// defaultRealtimePollInterval is used when realtime watching falls back
// to polling and no explicit interval was configured.
const defaultRealtimePollInterval = 5

func buildEngine(cfg *config.Config, logger *logging.Logger) (*fim.ScanEngine, error) {
	ignore, err := fim.NewIgnoreRules(cfg.Ignore.Literal, cfg.Ignore.Glob, cfg.Ignore.Regex)
	if err != nil {
		return nil, err
	}

	roots := make([]fim.RootConfig, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		mask, err := maskFromNames(root.Mask)
		if err != nil {
			return nil, err
		}

		restriction, err := fim.NewRestriction(root.Restriction)
		if err != nil {
			return nil, err
		}

		recurseLevel := -1
		if root.RecurseLevel != nil {
			recurseLevel = *root.RecurseLevel
		}

		prefilterCmd := root.PrefilterCmd
		if prefilterCmd == "" {
			prefilterCmd = cfg.PrefilterCmd
		}

		roots = append(roots, fim.RootConfig{
			Path:         root.Path,
			Mask:         mask,
			Restriction:  restriction,
			PrefilterCmd: prefilterCmd,
			RecurseLevel: recurseLevel,
			CrossDevice:  root.CrossDevice,
		})
	}

	return &fim.ScanEngine{
		Roots:  roots,
		Ignore: ignore,
		Logger: logger.Sublogger("scan"),
	}, nil
}

// maskFromNames translates the configuration's string mask entries into
// an fim.OptionMask.
func maskFromNames(names []string) (fim.OptionMask, error) {
	var mask fim.OptionMask
	for _, name := range names {
		switch name {
		case "size":
			mask |= fim.OptionSize
		case "perm":
			mask |= fim.OptionPerm
		case "owner":
			mask |= fim.OptionOwner
		case "group":
			mask |= fim.OptionGroup
		case "md5":
			mask |= fim.OptionMD5
		case "sha1":
			mask |= fim.OptionSHA1
		case "seechanges":
			mask |= fim.OptionSeeChanges
		case "realtime":
			mask |= fim.OptionRealtime
		default:
			return 0, errUnknownMaskEntry(name)
		}
	}
	return mask, nil
}

type unknownMaskEntryError struct{ name string }

func (e *unknownMaskEntryError) Error() string { return "unknown mask entry: " + e.name }

func errUnknownMaskEntry(name string) error { return &unknownMaskEntryError{name: name} }

func buildScheduler(cfg *config.Config, engine *fim.ScanEngine, database *fim.Database, sinkClient *sink.Client, logger *logging.Logger) (*fim.Scheduler, realtime.Source, error) {
	schedulerConfig := fim.SchedulerConfig{
		Interval:          time.Duration(cfg.Schedule.IntervalSeconds) * time.Second,
		ScanOnStart:       cfg.Schedule.ScanOnStart,
		RootcheckEnabled:  cfg.Rootcheck.Enabled,
		RootcheckInterval: time.Duration(cfg.Rootcheck.IntervalSeconds) * time.Second,
		PostScanSleep:     20 * time.Second,
	}

	if cfg.Schedule.ScanTime != "" {
		parsed, err := timeutil.ParseTimeOfDay(cfg.Schedule.ScanTime)
		if err != nil {
			return nil, nil, err
		}
		schedulerConfig.ScanTime = &parsed
	}
	if cfg.Schedule.ScanDay != "" {
		mask, err := timeutil.ParseDayMask(cfg.Schedule.ScanDay)
		if err != nil {
			return nil, nil, err
		}
		schedulerConfig.ScanDay = mask
	}
	// With a calendar trigger and no interval configured, unconditional
	// scans still run once a week.
	if schedulerConfig.ScanTime != nil && schedulerConfig.Interval == 0 {
		schedulerConfig.Interval = 7 * 24 * time.Hour
	}

	var realtimeSource realtime.Source
	if len(cfg.Roots) > 0 {
		pollInterval := cfg.Realtime.PollIntervalSeconds
		if pollInterval == 0 {
			pollInterval = defaultRealtimePollInterval
		}
		source, err := realtime.New(cfg.Roots[0].Path, cfg.Realtime.Enabled, time.Second, pollInterval)
		if err != nil {
			logger.Warnf("unable to start realtime source, falling back to periodic scanning only: %v", err)
		} else {
			realtimeSource = source
		}
	}

	rootkit := fim.NoopRootkitTask
	if cfg.Rootcheck.Enabled {
		rootkit = fim.DefaultRootkitTask
	}

	scheduler := fim.NewScheduler(engine, database, sinkClient, realtimeSource, rootkit, schedulerConfig, logger)
	return scheduler, realtimeSource, nil
}

func run(command *cobra.Command, arguments []string) error {
	configPath, err := command.Flags().GetString("config")
	if err != nil {
		return err
	}
	if configPath == "" {
		configPath = filesystem.ConfigurationPath
	}

	envPath, err := command.Flags().GetString("env")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	level, ok := logging.NameToLevel(cfg.Log.Level)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewRootLogger(level)

	instanceID, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	logger.Infof("starting fimd instance %s", instanceID)

	statusLine := &cmd.StatusLinePrinter{UseStandardError: true}
	statusLine.Print("fimd: loading configuration from " + configPath)

	database := fim.NewDatabase()

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		statusLine.Clear()
		return err
	}

	var sinkClient *sink.Client
	if cfg.Sink.SyscheckAddress != "" && cfg.Sink.RootcheckAddress != "" {
		statusLine.Print("fimd: connecting to sink")
		sinkClient, err = sink.Dial(sink.Addresses{
			Syscheck:  cfg.Sink.SyscheckAddress,
			Rootcheck: cfg.Sink.RootcheckAddress,
		})
		if err != nil {
			logger.Warnf("unable to dial sink, events will not be forwarded: %v", err)
		}
	}
	statusLine.Clear()

	scheduler, realtimeSource, err := buildScheduler(cfg, engine, database, sinkClient, logger)
	if err != nil {
		return err
	}
	defer scheduler.Close()
	if sinkClient != nil {
		defer must.Close(sinkClient, logger)
	}
	if realtimeSource != nil {
		defer must.Close(realtimeSource, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), cmd.TerminationSignals...)
	defer cancel()

	return scheduler.Run(ctx)
}

func main() {
	if !cmd.PerformingShellCompletion {
		cmd.HandleTerminalCompatibility()
	}

	rootCommand := &cobra.Command{
		Use:          "fimd",
		Short:        "File integrity monitoring daemon",
		Args:         cmd.DisallowArguments,
		Run:          cmd.Mainify(run),
		SilenceUsage: true,
	}
	flags := rootCommand.Flags()
	flags.String("config", "", "path to the daemon's YAML configuration file")
	flags.String("env", "", "path to an optional .env-style override file")

	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
	os.Exit(0)
}
