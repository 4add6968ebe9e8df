// Command stmtcache checks that the statements of a catalog configuration compile
// against a live database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stmtcache",
		Short: "stmtcache - connection scoped prepared statement cache tooling",
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.AddCommand(newVerifyCmd())
	return cmd
}
