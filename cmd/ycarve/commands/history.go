package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/meta"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historySource string
	historyTypes  []string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show previous scans, or the objects found by one scan",
	Args:  cobra.MaximumNArgs(1), // 0 或 1 个参数
	RunE: func(cmd *cobra.Command, args []string) error {
		if YC == nil {
			return fmt.Errorf("app not initialized")
		}
		if YC.Catalog == nil {
			return errors.New("no catalog configured (set catalog.dsn)")
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// 1. 指定了 run：列出它的对象
		if len(args) > 0 {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid run id '%s': %w", args[0], err)
			}
			types, err := parseTypes(historyTypes)
			if err != nil {
				return err
			}
			run, err := YC.Catalog.GetRun(ctx, uint(id))
			if err != nil {
				return err
			}
			objs, err := YC.Catalog.ListObjects(ctx, run.ID, types...)
			if err != nil {
				return err
			}
			printRun(out, run)
			printObjects(out, objs)
			return nil
		}

		// 2. 否则列出最近的扫描
		runs, err := YC.Catalog.ListRuns(ctx, historySource, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No scans recorded yet.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "RUN\tSTARTED\tSTATUS\tOBJECTS\tEXTRACTED\tREJECTED\tFAILED\tSOURCE\n")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Format(time.DateTime), r.Status,
				r.Objects, r.Extracted, r.Rejected, r.Failed, r.Source)
		}
		return tw.Flush()
	},
}

// parseTypes 解析 --type 参数 (file, directory, symlink ...)
func parseTypes(names []string) ([]core.ObjectType, error) {
	var out []core.ObjectType
	for _, n := range names {
		t, err := core.ParseObjectType(strings.ToLower(strings.TrimSpace(n)))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func printRun(w io.Writer, r *meta.Run) {
	fmt.Fprintf(w, "Run:     %d (%s)\n", r.ID, r.Status)
	fmt.Fprintf(w, "Source:  %s\n", r.Source)
	fmt.Fprintf(w, "Started: %s\n", r.StartedAt.Format(time.RFC1123))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Took:    %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Config:  %s\n\n", r.Config)
}

func printObjects(w io.Writer, objs []meta.ObjectRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "OFFSET\tTYPE\tPARENT\tSTATUS\tSIZE\tNAME\n")
	for _, o := range objs {
		name := o.Name
		if o.Status == "rejected" || o.Status == "failed" {
			name = o.Error
		}
		fmt.Fprintf(tw, "0x%x\t%s\t%d\t%s\t%d\t%s\n",
			o.Offset, core.ObjectType(o.Type), o.ParentID, o.Status, o.Size, name)
	}
	tw.Flush()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show")
	historyCmd.Flags().StringVar(&historySource, "source", "", "only show scans of this dump")
	historyCmd.Flags().StringSliceVarP(&historyTypes, "type", "t", nil, "with a run id, only show objects of these types (file, directory, symlink, hardlink, special, unknown)")
	rootCmd.AddCommand(historyCmd)
}
