package main

import (
	"github.com/spf13/cobra"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

func (c *cli) confirmationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "confirmations",
		Aliases: []string{"confirm"},
		Short:   "Drive phone verification requests",
	}

	var (
		contact    domain.Contact
		country    string
		numberType string
		proxy      string
		origin     string
		code       string
		hours      int
	)

	intake := &cobra.Command{
		Use:   "intake [pending-id]",
		Short: "Register a pending confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := c.svc.Confirmations.Intake(cmd.Context(), app.IntakeRequest{
				PendingID:  args[0],
				Contact:    contact,
				CountryISO: country,
				NumberType: numberType,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pc)
		},
	}
	contactFlags(intake, &contact)
	intake.Flags().StringVar(&country, "country", "", "ISO country of the wanted proxy")
	intake.Flags().StringVar(&numberType, "type", "", "mobile, local or national")

	start := &cobra.Command{
		Use:   "start [pending-id]",
		Short: "Reserve a proxy and send the OTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nt, err := domain.ParseNumberType(typeOrDefault(numberType, c.cfg.DefaultNumberType))
			if err != nil {
				return err
			}
			res, err := c.svc.Confirmations.CreatePending(cmd.Context(), app.CreatePendingRequest{
				PendingID:  args[0],
				CountryISO: countryOrDefault(country, c.cfg.DefaultCountryISO),
				NumberType: nt,
			})
			if res != nil {
				if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	start.Flags().StringVar(&country, "country", "", "ISO country (default DEFAULT_COUNTRY_ISO)")
	start.Flags().StringVar(&numberType, "type", "", "mobile, local or national (default DEFAULT_NUMBER_TYPE)")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Submit an OTP as if it had been texted to the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.svc.Confirmations.VerifyOtp(cmd.Context(), proxy, origin, code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	verify.Flags().StringVar(&proxy, "proxy", "", "Proxy number the code was sent from")
	verify.Flags().StringVar(&origin, "from", "", "Phone number submitting the code")
	verify.Flags().StringVar(&code, "code", "", "Submitted text")
	_ = verify.MarkFlagRequired("proxy")
	_ = verify.MarkFlagRequired("from")
	_ = verify.MarkFlagRequired("code")

	expire := &cobra.Command{
		Use:   "expire",
		Short: "Expire pending confirmations and release their proxies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("hours") {
				hours = c.cfg.PendingExpiryHours
			}
			res, err := c.svc.Sweeper.SweepOlderThan(cmd.Context(), hours)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	expire.Flags().IntVar(&hours, "hours", 0, "Age threshold in hours (default PENDING_EXPIRY_HOURS)")

	cmd.AddCommand(intake, start, verify, expire)
	return cmd
}

func contactFlags(cmd *cobra.Command, contact *domain.Contact) {
	cmd.Flags().StringVar(&contact.Name, "name", "", "Client name")
	cmd.Flags().StringVar(&contact.Mail, "mail", "", "Client e-mail")
	cmd.Flags().StringVar(&contact.Phone, "phone", "", "Client real phone (E.164)")
}
