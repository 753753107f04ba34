package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/osvaldoandrade/flowdb/pkg/app"
	"github.com/osvaldoandrade/flowdb/pkg/config"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// status colors a node status the way the flow scheduler reports it.
func (u *ui) status(s string) string {
	switch s {
	case "Completed", "Done":
		return u.ok(s)
	case "Error", "AbiCritical", "QCritical", "Unconverged":
		return u.err(s)
	case "Running", "Submitted":
		return u.info(s)
	default:
		return u.dim(s)
	}
}

// cli carries the state shared by subcommands. The application is opened
// on first use so that manager commands work without any storage.
type cli struct {
	cfgPath     string
	verbose     bool
	assumeYes   bool
	interactive bool
	ui          *ui

	app *app.Application
	// owned is set when open created app; injected applications stay open.
	owned bool
}

func (c *cli) open() (*app.Application, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.LoadConfigOptional(c.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Every command is its own process, so a memory store would lose each save.
	if cfg.Storage == config.StorageMemory {
		return nil, fmt.Errorf("storage %q does not outlive a single command; set storage to redis or mongo (--config or FLOWDB_STORAGE)", cfg.Storage)
	}
	var logOut io.Writer = io.Discard
	if c.verbose {
		logOut = os.Stderr
	}
	application, err := app.NewApplication(cfg, app.WithLogOutput(logOut))
	if err != nil {
		return nil, err
	}
	c.app, c.owned = application, true
	return application, nil
}

func (c *cli) close() {
	if c.app == nil || !c.owned {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.app.Close(ctx)
	c.app = nil
}

// spin starts a spinner on interactive terminals and returns its stop func.
func (c *cli) spin(msg string) func() {
	if !c.interactive {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

func (c *cli) progress(n int, desc string) *progressbar.ProgressBar {
	w := io.Discard
	if c.interactive {
		w = os.Stderr
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(18),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// confirm asks for an explicit "yes" unless --yes was given. Non-interactive
// sessions must pass --yes.
func (c *cli) confirm(in io.Reader, out io.Writer, question string) error {
	if c.assumeYes {
		return nil
	}
	if !c.interactive {
		return errors.New("refusing to delete without --yes on a non-interactive session")
	}
	fmt.Fprintf(out, "%s %s [yes/no]: ", c.ui.warn("[WARN]"), question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	if strings.ToLower(strings.TrimSpace(line)) != "yes" {
		return errors.New("aborted")
	}
	return nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowdb",
		Short: "flowdb CLI",
		Long:  "flowdb CLI for storing, querying and removing ABINIT flow results.",
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.close()
		},
	}
	root.SetHelpTemplate(helpTemplate(c.ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&c.cfgPath, "config", c.cfgPath, "Service config file (FLOWDB_CONFIG_PATH)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Write service logs to stderr")
	root.PersistentFlags().BoolVarP(&c.assumeYes, "yes", "y", false, "Do not ask for confirmation")

	root.AddCommand(saveCmd(c), listCmd(c), completedCmd(c), showCmd(c))
	root.AddCommand(deleteCmd(c), purgeCmd(c), restoreCmd(c), fileCmd(c), structureCmd(c))
	root.AddCommand(managerCmd(c))
	return root
}

func main() {
	c := &cli{
		cfgPath:     getenv("FLOWDB_CONFIG_PATH", ""),
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		ui:          newUI(),
	}
	root := newRootCmd(c)
	if err := root.Execute(); err != nil {
		c.close()
		fmt.Fprintln(os.Stderr, c.ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func helpTemplate(ui *ui) string {
	title := ui.title("flowdb")
	return fmt.Sprintf(`%s: CLI for ABINIT flow results

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Examples:
  flowdb save ./flow_si_relax
  flowdb list --status Completed
  flowdb file <id> gsr --path w0/t1 --out si_GSR.nc
  flowdb purge --status Error --yes
  flowdb manager short-spec --timelimit 0:10:00

`, title)
}
