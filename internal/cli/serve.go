package cli

import (
	"context"

	lambdaruntime "github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lambda runtime loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		lambdaruntime.Start(func(ctx context.Context, req *cfn.Request) error {
			return engine.Process(ctx, req)
		})
		return nil
	},
}
