package main

import (
	"github.com/spf13/cobra"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

func (c *cli) routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Routing diagnostics",
	}

	var (
		channel string
		proxy   string
		origin  string
		body    string
	)
	simulate := &cobra.Command{
		Use:   "simulate",
		Short: "Print the routing decision for a call or message",
		Long: `Runs the routing engine for an inbound event exactly as the webhook would.
The last caller is recorded and OTP replies are verified, so this is not a dry run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := domain.ChannelVoice
			switch channel {
			case "voice":
			case "sms", "message":
				ch = domain.ChannelMessage
			default:
				return domain.NewValidationError("channel", "expected voice or sms", channel)
			}
			decision, err := c.svc.Routing.Route(cmd.Context(), domain.InboundEvent{
				Channel: ch,
				Proxy:   proxy,
				Origin:  origin,
				Body:    body,
			})
			if printErr := printJSON(cmd.OutOrStdout(), decision); printErr != nil {
				return printErr
			}
			return err
		},
	}
	simulate.Flags().StringVar(&channel, "channel", "voice", "voice or sms")
	simulate.Flags().StringVar(&proxy, "proxy", "", "Called proxy number")
	simulate.Flags().StringVar(&origin, "from", "", "Caller number")
	simulate.Flags().StringVar(&body, "body", "", "Message body (sms only)")
	_ = simulate.MarkFlagRequired("proxy")
	_ = simulate.MarkFlagRequired("from")

	cmd.AddCommand(simulate)
	return cmd
}
