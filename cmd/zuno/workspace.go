package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/app"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	"github.com/shpitdev/zuno-lead-enrichment/internal/workspace"
)

var (
	wsShowFormat   string
	wsDeleteYes    bool
	wsExportOutput string
	wsExportFormat string
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage saved workspaces",
}

// withWorkspaces opens only the workspace storage; no AI client is needed.
func withWorkspaces(cmd *cobra.Command, fn func(*workspace.Store) error) error {
	ws, b, err := app.OpenWorkspaces(cmd.Context(), cfg.Store, zap.L(), nil)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ws)
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspaces(cmd, func(s *workspace.Store) error {
			list := s.List()
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No workspaces saved.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tSEARCHES")
			for _, w := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", w.ID, w.Name, w.CreatedAt, len(w.Searches))
			}
			return tw.Flush()
		})
	},
}

type workspaceView struct {
	workspace.Workspace
	Sources any `json:"sources"`
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workspace with its deduplicated web sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspaces(cmd, func(s *workspace.Store) error {
			w, err := s.Get(args[0])
			if err != nil {
				return err
			}
			return printAs(cmd.OutOrStdout(), wsShowFormat, workspaceView{Workspace: w, Sources: workspace.Sources(w)})
		})
	},
}

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workspace after confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspaces(cmd, func(s *workspace.Store) error {
			confirm := func(w workspace.Workspace) bool {
				if wsDeleteYes {
					return true
				}
				return promptYes(cmd.InOrStdin(), cmd.ErrOrStderr(),
					fmt.Sprintf("Are you sure you want to delete the workspace %q?", w.Name))
			}
			deleted, err := s.Delete(cmd.Context(), args[0], confirm)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not deleted.")
			}
			return nil
		})
	},
}

var workspaceExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a workspace to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := pipeline.ParseFormat(wsExportFormat)
		if err != nil {
			return err
		}
		loc, err := cfg.Export.Location()
		if err != nil {
			return err
		}
		return withWorkspaces(cmd, func(s *workspace.Store) error {
			w, err := s.Get(args[0])
			if err != nil {
				return err
			}
			path := wsExportOutput
			if path == "" {
				path = pipeline.ExportFileName(w.Name, format)
			}
			if err := app.WriteExport(path, format, w.Searches, loc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export written to %s\n", path)
			return nil
		})
	},
}

// promptYes asks question on w and reads a y/yes answer from r. Anything else is no.
func promptYes(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func init() {
	workspaceShowCmd.Flags().StringVarP(&wsShowFormat, "output", "o", "json", "output format: json or yaml")
	workspaceDeleteCmd.Flags().BoolVarP(&wsDeleteYes, "yes", "y", false, "skip the confirmation prompt")
	workspaceExportCmd.Flags().StringVarP(&wsExportOutput, "output", "o", "", "export path (default Zuno_<name>.<format>)")
	workspaceExportCmd.Flags().StringVar(&wsExportFormat, "format", "xlsx", "export format: xlsx or csv")

	workspaceCmd.AddCommand(workspaceListCmd, workspaceShowCmd, workspaceDeleteCmd, workspaceExportCmd)
	rootCmd.AddCommand(workspaceCmd)
}
