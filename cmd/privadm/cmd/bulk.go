package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/adapter/outbound/storage"
	"github.com/privd/privd/internal/protocol"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <file|->",
	Short: "Load a bulk policy file (bucket;client;user;privilege;type;metadata lines)",
	Long: `Load a bulk policy file: one "bucket;client;user;privilege;type;metadata"
record per line, blank lines and "#"-prefixed comments ignored. Records
are grouped by bucket and submitted as a single atomic SetPoliciesReq.
Pass "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := os.Stdin
		if args[0] != "-" {
			opened, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open bulk file: %w", err)
			}
			defer func() { _ = opened.Close() }()
			f = opened
		}

		edits, err := storage.ParseBulk(f)
		if err != nil {
			return err
		}
		if len(edits) == 0 {
			fmt.Println("no records to load")
			return nil
		}

		inserts := make([]protocol.PolicyEditWire, 0, len(edits))
		for _, e := range edits {
			policies := make([]protocol.PolicyWire, 0, len(e.Policies))
			for _, p := range e.Policies {
				policies = append(policies, protocol.PolicyWire{Key: p.Key, Result: p.Result})
			}
			inserts = append(inserts, protocol.PolicyEditWire{BucketID: e.BucketID, Policies: policies})
		}

		resp, err := callAdmin(protocol.SetPoliciesReq{Seq: 1, Inserts: inserts})
		if err != nil {
			return err
		}
		if err := printCodeResp(resp); err != nil {
			return err
		}
		fmt.Printf("loaded %d buckets\n", len(edits))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bulkCmd)
}
