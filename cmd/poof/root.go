package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/poof-sh/poof/config"
	"github.com/poof-sh/poof/supervisor"
)

// version is injected at build time.
var version = "dev"

// exitCode is the process exit code decided by the command runners.
var exitCode int

var (
	flagVerbose  bool
	flagVersion  bool
	flagMemory   string
	flagPids     string
	flagTimeout  string
	flagHostname string
	flagUpper    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "poof [command] [flags] [--] <program> [args...]",
		Short: "ephemeral filesystem sandbox",
		Long: "poof runs any command against a copy-on-write view of the host root.\n" +
			"Writes are discarded (exec), persisted to a directory (run), or\n" +
			"reviewed interactively on exit (enter).",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDefault,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flagMemory, "memory", "", "memory limit, e.g. 256M or 2G")
	pf.StringVar(&flagPids, "pids", "", "max number of processes")
	pf.StringVar(&flagTimeout, "timeout", "", "kill the command after this many seconds")
	pf.StringVar(&flagHostname, "hostname", "poof", "hostname inside the sandbox")
	root.Flags().BoolVarP(&flagVersion, "version", "V", false, "print version")

	root.AddCommand(newExecCmd(), newRunCmd(), newEnterCmd())
	return root
}

// runDefault implements the bare-invocation convenience: a known shell
// name behaves like exec, anything else enters a reviewed shell.
func runDefault(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Printf("poof %s\n", version)
		return nil
	}
	if inferCommand(args) == "exec" {
		return execMode(args)
	}
	return enterMode()
}

func inferCommand(args []string) string {
	if len(args) > 0 && config.IsKnownShell(args[0]) {
		return "exec"
	}
	return "enter"
}

func newExecCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "exec [--] <program> [args...]",
		Short: "run a command, discard all filesystem changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execMode(args)
		},
	}
	c.Flags().SetInterspersed(false)
	return c
}

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [--upper=<dir>] [--] <program> [args...]",
		Short: "run a command, keep changes in an upper directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(args)
		},
	}
	c.Flags().StringVar(&flagUpper, "upper", "", "directory that receives the changes")
	c.Flags().SetInterspersed(false)
	return c
}

func newEnterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enter",
		Short: "start a shell, review changes on exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return enterMode()
		},
	}
}

func execMode(args []string) error {
	cfg, err := buildConfig(config.Ephemeral, args)
	if err != nil {
		return err
	}
	exitCode = supervisor.New(cfg).Run()
	return nil
}

func runMode(args []string) error {
	mode := config.Persistent
	interactive := flagUpper == "" && term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		mode = config.Interactive
	}
	cfg, err := buildConfig(mode, args)
	if err != nil {
		return err
	}
	cfg.UpperDir = flagUpper
	if interactive {
		cfg.InteractiveTarget = cfg.Cwd
	}
	exitCode = supervisor.New(cfg).Run()
	return nil
}

func enterMode() error {
	shell := config.DefaultShell()
	if os.Getenv("SHELL") == "" {
		if defs, err := config.LoadDefaults(); err == nil && defs.Shell != "" {
			shell = defs.Shell
		}
	}
	cfg, err := buildConfig(config.Interactive, []string{shell})
	if err != nil {
		return err
	}
	cfg.InteractiveTarget = cfg.Cwd
	cfg.ShellFallback = true
	exitCode = supervisor.New(cfg).Run()
	return nil
}

// buildConfig merges the defaults file beneath the flags and validates
// every numeric option before anything forks.
func buildConfig(mode config.Mode, command []string) (*config.Config, error) {
	defs, err := config.LoadDefaults()
	if err != nil {
		logrus.Warn(err)
	}
	if defs.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	mem := flagMemory
	if mem == "" && defs.Memory != "" {
		mem = defs.Memory
	}
	pids := flagPids
	if pids == "" && defs.Pids > 0 {
		pids = fmt.Sprint(defs.Pids)
	}
	timeout := flagTimeout
	if timeout == "" && defs.Timeout > 0 {
		timeout = fmt.Sprint(defs.Timeout)
	}

	cfg := &config.Config{
		Mode:     mode,
		Command:  command,
		Hostname: flagHostname,
		Verbose:  flagVerbose,
	}
	if cfg.MemoryLimit, err = config.ParseMemory(mem); err != nil {
		return nil, err
	}
	if cfg.PidsLimit, err = config.ParsePids(pids); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = config.ParseTimeout(timeout); err != nil {
		return nil, err
	}
	if cfg.Cwd, err = os.Getwd(); err != nil {
		cfg.Cwd = "/"
	}
	if flagVerbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}
