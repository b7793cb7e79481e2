package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "geabridge",
		Short:         "Bridge GE Appliances on MQTT to typed entities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $GEABRIDGE_CONFIG or "+defaultConfigPath+")")

	load := func() (*config.Config, error) {
		return config.Load(resolveConfigPath(configPath))
	}

	root.AddCommand(serveCmd(load), checkCmd(load), versionCmd())
	return root
}

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// checkCmd validates the configuration and the appliance documents without
// connecting to anything.
func checkCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and appliance documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			docs, err := loadDocuments(cfg.Appliance)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "definitions: %d ERDs\n", docs.definitions.Len())
			fmt.Fprintf(out, "api: %d common versions, %d feature types\n",
				len(docs.manifest.CommonAPI.Versions), len(docs.manifest.FeatureAPIs))
			if docs.meta != nil {
				fmt.Fprintf(out, "meta ERDs: %d transforms\n", len(docs.meta.Rows))
			} else {
				fmt.Fprintln(out, "meta ERDs: none")
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geabridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath picks the flag, then GEABRIDGE_CONFIG, then the default.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("GEABRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

type documents struct {
	definitions *appliance.Definitions
	manifest    *appliance.Manifest
	meta        *appliance.MetaTable
}

// loadDocuments reads the ERD definitions, the API manifest and, when
// configured, the meta-ERD table.
func loadDocuments(cfg config.ApplianceConfig) (*documents, error) {
	defs, err := appliance.LoadDefinitions(cfg.DefinitionsFile)
	if err != nil {
		return nil, fmt.Errorf("loading ERD definitions: %w", err)
	}
	manifest, err := appliance.LoadManifest(cfg.APIFile)
	if err != nil {
		return nil, fmt.Errorf("loading appliance API: %w", err)
	}

	docs := &documents{definitions: defs, manifest: manifest}
	if cfg.MetaERDFile != "" {
		if docs.meta, err = appliance.LoadMetaTable(cfg.MetaERDFile); err != nil {
			return nil, fmt.Errorf("loading meta ERD table: %w", err)
		}
	}
	return docs, nil
}
