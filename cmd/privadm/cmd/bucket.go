package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/adapter/outbound/storage"
	"github.com/privd/privd/internal/protocol"
)

var setBucketCmd = &cobra.Command{
	Use:   "set-bucket <bucket-id> <type> [metadata]",
	Short: "Create a bucket, or update its default result if it already exists",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata := ""
		if len(args) == 3 {
			metadata = args[2]
		}
		result, err := storage.ParseBulkType(args[1], metadata)
		if err != nil {
			return err
		}
		resp, err := callAdmin(protocol.InsertOrUpdateBucketReq{Seq: 1, BucketID: args[0], Default: result})
		if err != nil {
			return err
		}
		return printCodeResp(resp)
	},
}

var deleteBucketCmd = &cobra.Command{
	Use:   "delete-bucket <bucket-id>",
	Short: "Delete a bucket and cascade-clean any BUCKET links that pointed to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := callAdmin(protocol.RemoveBucketReq{Seq: 1, BucketID: args[0]})
		if err != nil {
			return err
		}
		return printCodeResp(resp)
	},
}

func init() {
	rootCmd.AddCommand(setBucketCmd, deleteBucketCmd)
}

// callAdmin dials the admin socket, sends one request, and returns the
// decoded response.
func callAdmin(req interface{ Encode() []byte }) (any, error) {
	path, err := adminSocketPath()
	if err != nil {
		return nil, err
	}
	c, err := dialAdmin(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()
	return c.Call(req)
}

// printCodeResp renders a CodeResp and returns a non-nil error if it
// reports failure, so cobra exits non-zero.
func printCodeResp(resp any) error {
	cr, ok := resp.(protocol.CodeResp)
	if !ok {
		return fmt.Errorf("unexpected response type %T", resp)
	}
	if cr.Code != protocol.CodeResponseOK {
		return fmt.Errorf("request failed (code=%v): %s", cr.Code, cr.Message)
	}
	fmt.Println("OK")
	return nil
}
