package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <value>",
	Short: "Print the SHA256 digest of a bucket id or key slot",
	Long: `Print a stable SHA256 digest of a value, for operators comparing exported
bulk files or bucket ids across hosts without transmitting the raw value.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sum := sha256.Sum256([]byte(args[0]))
		fmt.Printf("sha256:%s\n", hex.EncodeToString(sum[:]))
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
