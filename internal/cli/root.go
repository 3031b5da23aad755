// Package cli wires the resource handlers into a small command-line surface:
// the Lambda runtime loop for production, and local event invocation for
// development.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cfn-resources",
	Short: "Custom CloudFormation resource handlers",
	Long: `cfn-resources implements custom CloudFormation resources: certificate
provisioning with DNS validation, and domain-attribute lookups.

Each lifecycle event is serialized per resource instance, long-running work
is resumed through one-shot schedule rules, and the terminal status is
reported back to the stack's callback URL.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(versionCmd)
}
