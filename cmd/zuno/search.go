package main

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
)

var (
	searchContact string
	searchAddress string
	searchDeep    bool
	searchSaveAs  string
	searchFormat  string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Enrich a single manually entered property",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := pipeline.Search(ctx, a.Enricher, searchContact, searchAddress, enrich.ModeFor(searchDeep))
		if err != nil {
			if errors.Is(err, pipeline.ErrAddressRequired) {
				return eris.New(pipeline.AddressRequiredMessage)
			}
			return err
		}
		if err := printAs(cmd.OutOrStdout(), searchFormat, res); err != nil {
			return err
		}

		if searchSaveAs != "" {
			name := searchSaveAs
			if name == "-" {
				name = "Manual: " + res.Row.Subject
			}
			ws, err := a.Workspaces.Save(ctx, []pipeline.Row{res.Row}, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Workspace %q saved as %s\n", ws.Name, ws.ID)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchContact, "contact", "", "owner or contact name")
	searchCmd.Flags().StringVar(&searchAddress, "address", "", "property address (required)")
	searchCmd.Flags().BoolVar(&searchDeep, "deep", false, "use the deep research prompt")
	searchCmd.Flags().StringVar(&searchSaveAs, "save", "", `save the result as a workspace with this name ("-" for "Manual: <subject>")`)
	searchCmd.Flags().StringVarP(&searchFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(searchCmd)
}
