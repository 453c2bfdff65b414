package main

import (
	"encoding/json"
	"fmt"

	"github.com/binwatch/snaphash/internal"
	"github.com/spf13/cobra"
)

func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Extract the snapshot hash from a local binary",
		Long: `Scan a file byte by byte and print the first 32-character hex token found
inside a printable-ASCII run, the same scan the collector applies to
downloaded artifacts.`,
		Args: cobra.ExactArgs(1),
		RunE: makeScanRunner(),
	}

	return cmd
}

func makeScanRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		hash, found := internal.ExtractFile(path)

		if asJSON {
			return outputScanJSON(cmd, path, hash, found)
		}

		if !found {
			return fmt.Errorf("no snapshot hash in %s", path)
		}

		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	}
}

func outputScanJSON(cmd *cobra.Command, path, hash string, found bool) error {
	data := map[string]any{
		"path":          path,
		"snapshot_hash": hash,
		"found":         found,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
