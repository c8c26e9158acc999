package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/domain/policy"
	"github.com/privd/privd/internal/protocol"
)

var checkRecursive bool

var checkCmd = &cobra.Command{
	Use:   "check <bucket-id> <client> <user> <privilege>",
	Short: "Evaluate a key starting at the given bucket and print the decision",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := policy.Key{Client: args[1], User: args[2], Privilege: args[3]}
		req := protocol.AdminCheckReq{Seq: 1, StartBucket: args[0], Recursive: checkRecursive, Key: key}
		resp, err := callAdmin(req)
		if err != nil {
			return err
		}
		r, ok := resp.(protocol.AdminCheckResp)
		if !ok {
			return fmt.Errorf("unexpected response type %T", resp)
		}
		if !r.BucketValid {
			return fmt.Errorf("bucket %q does not exist", args[0])
		}
		fmt.Printf("%s\n", r.Result.Type)
		if r.DBCorrupted {
			fmt.Println("warning: database reported corrupted on load")
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkRecursive, "recursive", false, "cascade the search across BUCKET links")
	rootCmd.AddCommand(checkCmd)
}
