package main

import (
	"encoding/json"
	"fmt"

	"github.com/binwatch/snaphash/internal"
	"github.com/spf13/cobra"
)

func NewLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recorded snapshot hashes, newest first",
		Long:  `Print the ledger records in recorded order, newest release first.`,
		Args:  cobra.NoArgs,
		RunE:  makeLedgerRunner(),
	}

	cmd.Flags().Int("limit", 0, "Show at most this many records (0 shows all)")

	return cmd
}

func makeLedgerRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return err
		}

		led, err := internal.ReadLedger(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}

		records, err := led.Records()
		if err != nil {
			return fmt.Errorf("parse ledger: %w", err)
		}

		total := len(records)
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < total {
			records = records[:limit]
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return outputLedgerJSON(cmd, records, total)
		}

		out := cmd.OutOrStdout()
		for _, rec := range records {
			fmt.Fprintln(out, rec.Line())
		}
		fmt.Fprintf(out, "%d of %d records\n", len(records), total)
		return nil
	}
}

func outputLedgerJSON(cmd *cobra.Command, records []internal.Record, total int) error {
	if records == nil {
		records = []internal.Record{}
	}

	data := map[string]any{
		"total":   total,
		"records": records,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
