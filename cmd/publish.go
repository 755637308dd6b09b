package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// newPublishCmd creates the 'publish' subcommand, a small producer for
// smoke testing a running worker without a chat front end.
func newPublishCmd() *cobra.Command {
	var (
		chatID    int64
		messageID int64
	)
	cmd := &cobra.Command{
		Use:   "publish <url>",
		Short: "Publishes a download request on the bus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()

			correlationID, err := appInstance.IDs().NewID()
			if err != nil {
				return fmt.Errorf("generate correlation id: %w", err)
			}
			req := relay.Request{
				CorrelationID: correlationID,
				ChatID:        chatID,
				MessageID:     messageID,
				URL:           args[0],
			}
			if err := appInstance.Bus().Publish(cmd.Context(), cfg.Bus.Channel, req); err != nil {
				return fmt.Errorf("publish request: %w", err)
			}
			appInstance.Logger().Info("request published",
				zap.String("correlation_id", correlationID),
				zap.String("channel", cfg.Bus.Channel),
				zap.String("url", args[0]))
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "chat identifier echoed in the reply")
	cmd.Flags().Int64Var(&messageID, "message-id", 0, "message identifier echoed in the reply")
	return cmd
}
