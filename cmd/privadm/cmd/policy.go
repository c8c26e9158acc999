package cmd

import (
	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/adapter/outbound/storage"
	"github.com/privd/privd/internal/domain/policy"
	"github.com/privd/privd/internal/protocol"
)

var setPolicyCmd = &cobra.Command{
	Use:   "set-policy <bucket-id> <client> <user> <privilege> <type> [metadata]",
	Short: "Insert or overwrite a single policy",
	Args:  cobra.RangeArgs(5, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata := ""
		if len(args) == 6 {
			metadata = args[5]
		}
		result, err := storage.ParseBulkType(args[4], metadata)
		if err != nil {
			return err
		}
		key := policy.Key{Client: args[1], User: args[2], Privilege: args[3]}
		req := protocol.SetPoliciesReq{
			Seq: 1,
			Inserts: []protocol.PolicyEditWire{{
				BucketID: args[0],
				Policies: []protocol.PolicyWire{{Key: key, Result: result}},
			}},
		}
		resp, err := callAdmin(req)
		if err != nil {
			return err
		}
		return printCodeResp(resp)
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase <bucket-id> <client> <user> <privilege>",
	Short: "Remove policies matching the given filter from a bucket",
	Long: `Remove policies matching the given filter from a bucket. Each of client,
user, and privilege may be a literal value, "*" (the stored wildcard), or
"**" (matches either, filter-only).`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := policy.Key{Client: args[1], User: args[2], Privilege: args[3]}
		req := protocol.EraseReq{Seq: 1, StartBucket: args[0], Recursive: eraseRecursive, Filter: filter}
		resp, err := callAdmin(req)
		if err != nil {
			return err
		}
		return printCodeResp(resp)
	},
}

var eraseRecursive bool

func init() {
	eraseCmd.Flags().BoolVar(&eraseRecursive, "recursive", false, "cascade the erase across every bucket reachable via BUCKET links")
	rootCmd.AddCommand(setPolicyCmd, eraseCmd)
}
