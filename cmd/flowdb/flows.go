package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/osvaldoandrade/flowdb/internal/services"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
	"github.com/osvaldoandrade/flowdb/pkg/workdir"

	"github.com/spf13/cobra"
)

func saveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "save <workdir>...",
		Short:   "Store finished flows",
		Example: "flowdb save ./flow_si_relax ./flow_si_ebands",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bar := c.progress(len(args), "Saving flows")
			var failed []error
			for _, dir := range args {
				rec, err := saveDir(cmd.Context(), application.Flows, dir)
				_ = bar.Add(1)
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", dir, err))
					continue
				}
				fmt.Fprintf(out, "%s %s %s\n", c.ui.ok("[OK]"), rec.ID, c.ui.dim(dir))
			}
			return errors.Join(failed...)
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	var (
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			stop := c.spin("Fetching flows...")
			var recs []*domain.FlowRecord
			if status != "" {
				recs, err = application.Flows.ByStatus(cmd.Context(), status)
			} else {
				recs, err = application.Flows.List(cmd.Context())
			}
			stop()
			if err != nil {
				return err
			}
			return printFlows(c, cmd.OutOrStdout(), recs, asJSON)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only flows with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON documents")
	return cmd
}

func completedCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "completed",
		Short: "List completed flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			recs, err := application.Flows.Completed(cmd.Context())
			if err != nil {
				return err
			}
			return printFlows(c, cmd.OutOrStdout(), recs, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON documents")
	return cmd
}

func printFlows(c *cli, out io.Writer, recs []*domain.FlowRecord, asJSON bool) error {
	if asJSON {
		if recs == nil {
			recs = []*domain.FlowRecord{}
		}
		return printJSON(out, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, c.ui.dim("no flows"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNODE\tCLASS\tSTATUS\tWORKS\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n",
			r.ID, r.NodeID, r.NodeClass, c.ui.status(r.Status), len(r.Works), r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func showCmd(c *cli) *cobra.Command {
	var work int
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("work") {
				w, err := application.Flows.Work(cmd.Context(), args[0], work)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), w)
			}
			rec, err := application.Flows.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().IntVar(&work, "work", 0, "Print only this work (negative counts from the end)")
	return cmd
}

func deleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a flow and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			id := args[0]
			if _, err := application.Flows.Get(cmd.Context(), id); err != nil {
				return err
			}
			if err := c.confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete flow "+id+"?"); err != nil {
				return err
			}
			stop := c.spin("Deleting flow...")
			err = application.Flows.Delete(cmd.Context(), id)
			stop()
			if err != nil {
				if !gone(cmd.Context(), application.Flows, id) {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s deleted, some artifacts remain: %v\n", c.ui.warn("[WARN]"), id, err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s deleted\n", c.ui.ok("[OK]"), id)
			return nil
		},
	}
}

func purgeCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "purge",
		Short:   "Delete every flow with a status",
		Example: "flowdb purge --status Error --yes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return errors.New("--status is required")
			}
			application, err := c.open()
			if err != nil {
				return err
			}
			recs, err := application.Flows.ByStatus(cmd.Context(), status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintf(out, "%s no flows with status %s\n", c.ui.info("[INFO]"), status)
				return nil
			}
			question := fmt.Sprintf("Delete %d flows with status %s?", len(recs), status)
			if err := c.confirm(cmd.InOrStdin(), out, question); err != nil {
				return err
			}
			bar := c.progress(len(recs), "Deleting flows")
			deleted, partial := 0, 0
			var failed []error
			for _, r := range recs {
				err := application.Flows.Delete(cmd.Context(), r.ID)
				_ = bar.Add(1)
				switch {
				case err == nil:
					deleted++
				case gone(cmd.Context(), application.Flows, r.ID):
					deleted++
					partial++
				default:
					failed = append(failed, fmt.Errorf("%s: %w", r.ID, err))
				}
			}
			fmt.Fprintf(out, "%s deleted %d flows (%d with leftover artifacts)\n", c.ui.ok("[OK]"), deleted, partial)
			return errors.Join(failed...)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Status of the flows to delete")
	return cmd
}

func restoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Reload a stored flow from its working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			flow, err := application.Flows.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%d] %s %s\n", flow.ClassName(), flow.NodeID(), c.ui.status(flow.Status()), c.ui.dim(flow.Workdir()))
			for i, w := range flow.Works() {
				fmt.Fprintf(out, "  w%d %s [%d] %s\n", i, w.ClassName(), w.NodeID(), c.ui.status(w.Status()))
				for j, t := range w.Tasks() {
					line := fmt.Sprintf("    t%d %s [%d] %s", j, t.ClassName(), t.NodeID(), c.ui.status(t.Status()))
					if report, err := t.EventReport(); err == nil && report != nil {
						line += c.ui.dim(fmt.Sprintf("  warnings=%d errors=%d comments=%d",
							report.NumWarnings(), report.NumErrors(), report.NumComments()))
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}

func fileCmd(c *cli) *cobra.Command {
	var (
		path   string
		output string
	)
	cmd := &cobra.Command{
		Use:     "file <id> <slot>",
		Short:   "Fetch a stored artifact",
		Example: "flowdb file <id> output_file --path w0/t0\nflowdb file <id> gsr --path w0/t1 --out si_GSR.nc",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fh, err := application.Flows.OpenFile(ctx, args[0], path, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case output != "":
				data, err := fh.Read(ctx)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s wrote %s (%d bytes)\n", c.ui.ok("[OK]"), output, len(data))
			case fh.IsText():
				data, err := fh.Read(ctx)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			default:
				tmp, err := fh.WriteTemp(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s binary artifact written to %s\n", c.ui.info("[INFO]"), filepath.Clean(tmp))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", `Node path: "" (flow), "w0" (work) or "w0/t1" (task)`)
	cmd.Flags().StringVar(&output, "out", "", "Write the artifact to this file")
	return cmd
}

func saveDir(ctx context.Context, svc services.FlowService, dir string) (*domain.FlowRecord, error) {
	flow, err := workdir.Load(dir)
	if err != nil {
		return nil, err
	}
	return svc.Save(ctx, flow)
}

func structureCmd(c *cli) *cobra.Command {
	var (
		path  string
		final bool
	)
	cmd := &cobra.Command{
		Use:     "structure <id>",
		Short:   "Summarize the structure of a stored task",
		Example: "flowdb structure <id> --path w0/t0 --final",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := c.open()
			if err != nil {
				return err
			}
			st, err := application.Flows.Structure(cmd.Context(), args[0], path, final)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  sites=%d  volume=%.4f\n", c.ui.title(st.Formula()), st.NumSites(), st.Volume())
			for _, row := range st.Lattice.Matrix {
				fmt.Fprintf(out, "  %10.6f %10.6f %10.6f\n", row[0], row[1], row[2])
			}
			for _, site := range st.Sites {
				fmt.Fprintf(out, "  %-4s %8.5f %8.5f %8.5f\n", site.Label, site.Frac[0], site.Frac[1], site.Frac[2])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "w0/t0", "Task path w<i>/t<j>")
	cmd.Flags().BoolVar(&final, "final", false, "Use the structure at the end of the run")
	return cmd
}

// gone reports whether the flow document no longer exists.
func gone(ctx context.Context, svc services.FlowService, id string) bool {
	_, err := svc.Get(ctx, id)
	return errors.Is(err, persistence.ErrNotFound)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
