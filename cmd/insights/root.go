package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iTwin/insights-api-sample-console-app/internal/config"
	"github.com/iTwin/insights-api-sample-console-app/internal/logging"
)

// flagKeys maps command flags to configuration keys. A flag only overrides
// the file and environment when it is set on the command line.
var flagKeys = map[string]string{
	"base-url":   "api.base_url",
	"token":      "api.token",
	"token-file": "api.token_file",
	"project":    "project_id",
	"imodel":     "imodel_id",
	"log-level":  "logger.level",
	"log-format": "logger.format",
	"log-file":   "logger.log_file",
	"runlog":     "runlog.path",
	"plan":       "plan.path",
	"interval":   "poll.interval",
	"timeout":    "poll.timeout",
}

// app is the state shared by every subcommand once the root pre-run has
// loaded the configuration.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "insights",
		Short: "Provision and extract iTwin Insights reports",
		Long: "insights drives the iTwin Insights API: it gets or creates a report,\n" +
			"mapping, groups and properties from a plan file, launches extractions\n" +
			"and follows them until they finish.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logging.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default ./insights.yaml if present)")
	pf.String("base-url", "", "Insights API base URL")
	pf.String("token", "", "access token, with or without the Bearer prefix")
	pf.String("token-file", "", "file holding the access token (default "+config.DefaultTokenFile+")")
	pf.String("project", "", "project (iTwin) ID")
	pf.String("imodel", "", "iModel ID")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("log-file", "", "also write JSON logs to this file, rotated")
	pf.String("runlog", "", "extraction run history database")

	root.AddCommand(newProvisionCmd(a))
	root.AddCommand(newExtractCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newRunsCmd(a))
	root.AddCommand(newReportsCmd(a))
	root.AddCommand(newMappingsCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

// load binds the flags of the executing command, reads the configuration
// and initializes logging on the command's stderr.
func (a *app) load(cmd *cobra.Command) error {
	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Init(cfg.LoggingOptions(), cmd.ErrOrStderr())
	a.logger = logging.New("cli")
	a.logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
