package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
)

var invokeEventFile string

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Process one lifecycle event from a JSON file",
	Long: `Invoke reads a CloudFormation custom resource event from a JSON file and
runs it through the same engine the Lambda runtime uses. Useful for local
development against real AWS credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(invokeEventFile)
		if err != nil {
			return fmt.Errorf("failed to read event file: %w", err)
		}
		var req cfn.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}

		engine, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		return engine.Process(cmd.Context(), &req)
	},
}

func init() {
	invokeCmd.Flags().StringVarP(&invokeEventFile, "event", "e", "", "path to the event JSON file")
	_ = invokeCmd.MarkFlagRequired("event")
}
