package main

import (
	"fmt"
	"io"

	"github.com/osvaldoandrade/flowdb/pkg/taskmanager"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func loadManager(args []string) (*taskmanager.Manager, error) {
	if len(args) == 1 {
		return taskmanager.FromFile(args[0])
	}
	return taskmanager.FromUserConfig()
}

func managerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Inspect the task manager configuration (" + taskmanager.YAMLFile + ")",
	}

	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a task manager file and print the effective policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManager(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", c.ui.ok("[OK]"), m.Path)
			if tm := m.TaskManager(); tm != nil {
				for i, qa := range tm.QAdapters {
					fmt.Fprintf(out, "  qadapter %d: %s %s priority=%d\n", i, qa.QType(), qa.QName(), qa.Priority)
				}
			} else {
				fmt.Fprintf(out, "%s no qadapters, jobs run without a task manager\n", c.ui.info("[INFO]"))
			}
			data, err := m.Dump()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}

	var timelimit string
	shortSpec := &cobra.Command{
		Use:     "short-spec [path]",
		Short:   "Print the queue settings of a short single-core job",
		Example: "flowdb manager short-spec --timelimit 0:10:00",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManager(args)
			if err != nil {
				return err
			}
			seconds := 0
			if timelimit != "" {
				if seconds, err = taskmanager.ParseTimelimit(timelimit); err != nil {
					return err
				}
			}
			spec, err := m.SetShortSingleCoreToSpec(nil, seconds)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), spec)
		},
	}
	shortSpec.Flags().StringVar(&timelimit, "timelimit", "", "Wall time as seconds or [D-]H:M:S (default: policy short_job_timelimit)")

	cmd.AddCommand(check, shortSpec)
	return cmd
}

func printYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
