package main

import (
	"encoding/json"
	"fmt"

	"github.com/binwatch/snaphash/internal"
	"github.com/spf13/cobra"
)

func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <hash>",
		Short: "Check that a string is a well-formed snapshot hash",
		Long:  `Exit zero when the argument is exactly 32 hex characters, non-zero otherwise.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeValidateRunner(),
	}

	return cmd
}

func makeValidateRunner() func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		hash := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		valid := internal.IsSnapshotHash(hash)

		if asJSON {
			if err := outputValidateJSON(cmd, hash, valid); err != nil {
				return err
			}
		} else if valid {
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
		}

		if !valid {
			return fmt.Errorf("not a snapshot hash: %q", hash)
		}
		return nil
	}
}

func outputValidateJSON(cmd *cobra.Command, hash string, valid bool) error {
	data := map[string]any{
		"hash":  hash,
		"valid": valid,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
