package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/capstone-tracker/internal/config"
	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/server"
)

// Exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeInvalid is returned for rejected input: unknown IDs, bad
	// arguments, cycles.
	ExitCodeInvalid = 2
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

// load reads the config file, applies environment overrides, then flags.
// Flags win.
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.dataDir != "" {
		cfg.Database.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logging.Init(cfg.LogLevel(), os.Stderr)
	return cfg, nil
}

// openApp loads the config and wires the core.
func (o *globalOptions) openApp() (*server.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return server.NewApp(cfg)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "capstone",
		Short: "Track capstone milestones, tasks and their dependencies",
		Long: `capstone tracks a project as milestones, features, functions and tasks.

Task dependencies are kept acyclic and task status rolls up into
function, feature and milestone progress. The same core is served over
HTTP (capstone serve) and MCP (capstone mcp).`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "capstone version %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.capstone/config.yaml)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the database (env: "+config.EnvDataDir+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env: "+config.EnvLogLevel+")")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newImportCmd(opts),
		newGanttCmd(opts),
		newVersionCmd(),
		newUpdateCmd(),
	)
	return root
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindConflict {
		return ExitCodeInvalid
	}
	return ExitCodeError
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}
