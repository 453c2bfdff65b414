package main

import (
	"encoding/json"
	"fmt"

	"github.com/binwatch/snaphash/internal"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snaphash",
		Short: "Collect snapshot hashes from published engine artifacts",
		Long: `Walks the published release list newest-first, resolves each release to its
engine build, downloads the build artifact and records the snapshot hash
embedded in its gen_snapshot binary. Results land in a newest-first CSV
ledger; releases already recorded are never reprocessed.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          makeCollectRunner(),
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)

	rootCmd.Flags().String("clone-dir", "", "Directory for the source repository clone")
	rootCmd.Flags().Bool("dry-run", false, "Collect and show the ledger diff without writing")

	rootCmd.AddCommand(
		NewScanCmd(),
		NewValidateCmd(),
		NewLedgerCmd(),
	)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("ledger", "", "Path to the ledger CSV")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Narrate each release at debug level")
}

func makeCollectRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		if cloneDir, _ := cmd.Flags().GetString("clone-dir"); cloneDir != "" {
			cfg.CloneDir = cloneDir
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		pipeline := internal.NewPipeline(cfg, nil, newLogger(cmd))
		result, err := pipeline.Run(cmd.Context(), dryRun)
		if err != nil {
			return fmt.Errorf("collect: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return outputCollectJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		if dryRun {
			if result.Diff != "" {
				fmt.Fprint(out, result.Diff)
			}
			fmt.Fprintf(out, "Dry run: %d new snapshot hashes, ledger not written\n", len(result.NewRecords))
			return nil
		}

		if len(result.NewRecords) == 0 {
			fmt.Fprintln(out, "No new snapshot hashes found.")
			return nil
		}
		fmt.Fprintf(out, "Added %d new snapshot hashes to %s\n", len(result.NewRecords), cfg.LedgerPath)
		return nil
	}
}

func outputCollectJSON(cmd *cobra.Command, result *internal.CollectResult) error {
	records := result.NewRecords
	if records == nil {
		records = []internal.Record{}
	}

	data := map[string]any{
		"added":   len(records),
		"records": records,
		"written": result.Written,
	}
	if result.Diff != "" {
		data["diff"] = result.Diff
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// loadConfigFromFlags reads the config named by --config (or the
// conventional file when unset) and applies the --ledger override.
func loadConfigFromFlags(cmd *cobra.Command) (*internal.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if ledger, _ := cmd.Flags().GetString("ledger"); ledger != "" {
		cfg.LedgerPath = ledger
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.New(cmd.ErrOrStderr())
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		printExternalCommands(c)
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (snaphash-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
