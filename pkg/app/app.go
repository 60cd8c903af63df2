package app

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"

	"github.com/opsdeck/opsdeck/pkg/log"
)

// RunFunc is the body of a command, run after options are loaded and validated.
type RunFunc func() error

// ConfigChangeFunc is called after the config file changed and the options
// were reloaded from it.
type ConfigChangeFunc func(e fsnotify.Event)

// App is a cobra command wired to named flag sets, a config file and the
// environment.
type App struct {
	name        string
	shortDesc   string
	description string

	options      NamedFlagSetOptions
	runFunc      RunFunc
	onChange     ConfigChangeFunc
	subcommands  []*cobra.Command
	noConfig     bool
	silence      bool
	validateArgs cobra.PositionalArgs

	cmd *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions sets the options loaded from flags, config and environment.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the command body.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.validateArgs = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithConfigChangeFunc reloads the options from the config file on change
// and then calls fn.
func WithConfigChangeFunc(fn ConfigChangeFunc) Option {
	return func(a *App) { a.onChange = fn }
}

// WithSubcommands adds child commands.
func WithSubcommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.subcommands = append(a.subcommands, cmds...) }
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithSilence suppresses the startup banner.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// NewApp creates an App named name.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{name: name, shortDesc: shortDesc}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.validateArgs,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true
	cmd.AddCommand(a.subcommands...)

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.name, fss.FlagSet("global"))
	}
	globalflag.AddGlobalFlags(fss.FlagSet("global"), cmd.Name())

	for _, f := range fss.FlagSets {
		cmd.Flags().AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, fss, cols)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if a.options != nil {
		if err := a.loadOptions(cmd.Flags()); err != nil {
			return err
		}
	}

	if !a.noConfig && a.onChange != nil {
		watchConfig(func(e fsnotify.Event) {
			if err := viper.Unmarshal(a.options); err != nil {
				log.Error(err, "Failed to reload configuration", "file", e.Name)
				return
			}
			log.Info("Configuration reloaded", "file", e.Name, "op", e.Op.String())
			a.onChange(e)
		})
	}

	if !a.silence {
		log.Info("Starting application", "name", a.name, "config", viper.ConfigFileUsed())
	}

	return a.runFunc()
}

// loadOptions merges config and environment into the options, then
// completes and validates them. Flags set on the command line win.
func (a *App) loadOptions(fs *pflag.FlagSet) error {
	if err := viper.BindPFlags(fs); err != nil {
		return err
	}
	if err := viper.Unmarshal(a.options); err != nil {
		return err
	}
	if err := a.options.Complete(); err != nil {
		return err
	}
	return a.options.Validate()
}
