package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/domain/policy"
	"github.com/privd/privd/internal/protocol"
)

var listPoliciesCmd = &cobra.Command{
	Use:   "list-policies <bucket-id> [client] [user] [privilege]",
	Short: "List policies matching a filter within a bucket",
	Long: `List policies matching a filter within a bucket. Omitted filter slots
default to "**" (matches both literal and wildcard stored values).`,
	Args: cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := policy.Key{Client: policy.Any, User: policy.Any, Privilege: policy.Any}
		if len(args) > 1 {
			filter.Client = args[1]
		}
		if len(args) > 2 {
			filter.User = args[2]
		}
		if len(args) > 3 {
			filter.Privilege = args[3]
		}
		resp, err := callAdmin(protocol.ListReq{Seq: 1, StartBucket: args[0], Filter: filter})
		if err != nil {
			return err
		}
		r, ok := resp.(protocol.ListResp)
		if !ok {
			return fmt.Errorf("unexpected response type %T", resp)
		}
		for _, p := range r.Policies {
			fmt.Printf("%s;%s;%s;%s;%s\n", p.Key.Client, p.Key.User, p.Key.Privilege, p.Result.Type, p.Result.Metadata)
		}
		return nil
	},
}

var listDescriptionsCmd = &cobra.Command{
	Use:   "list-policies-descriptions",
	Short: "List every registered policy type, built-in and plugin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := callAdmin(protocol.DescriptionListReq{Seq: 1})
		if err != nil {
			return err
		}
		r, ok := resp.(protocol.DescriptionListResp)
		if !ok {
			return fmt.Errorf("unexpected response type %T", resp)
		}
		for _, d := range r.Descriptions {
			fmt.Printf("0x%04X\t%s\n", uint16(d.Type), d.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listPoliciesCmd, listDescriptionsCmd)
}
