package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shpitdev/zuno-lead-enrichment/internal/app"
	"github.com/shpitdev/zuno-lead-enrichment/internal/config"
	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/version"
)

var (
	cfg *config.Config

	cfgFile  string
	useStub  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:     "zuno",
	Short:   "Property lead contact enrichment",
	Long:    "Enriches real-estate property leads with owner contact intelligence from Gemini with Google Search grounding, exports the results and keeps named workspaces.",
	Version: version.Current,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if _, err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $HOME/.zuno/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&useStub, "stub", false, "use the offline stub enricher instead of Gemini")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// openApp assembles the full application; Gemini is used unless --stub is set.
func openApp(ctx context.Context) (*app.App, error) {
	opts := app.Options{Logger: zap.L()}
	if useStub {
		opts.Enricher = enrich.Stub{}
	}
	return app.New(ctx, cfg, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// printYAML renders v through its JSON form so field names match the API.
func printYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return eris.Wrap(err, "encode output")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	return enc.Close()
}

func printAs(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		return printJSON(w, v)
	case "yaml":
		return printYAML(w, v)
	default:
		return eris.Errorf("unknown output format %q (json or yaml)", format)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
