package main

import (
	"github.com/spf13/cobra"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

func (c *cli) poolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and manage the proxy number pool",
	}

	var (
		country    string
		numberType string
		quantity   int
		fallback   bool
		token      string
		status     string
		dryRun     bool
	)

	list := &cobra.Command{
		Use:   "list",
		Short: "List available numbers and the per-type breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			var nt domain.NumberType
			if numberType != "" {
				parsed, err := domain.ParseNumberType(numberType)
				if err != nil {
					return err
				}
				nt = parsed
			}
			iso, err := domain.NormalizeCountryISO("country", countryOrDefault(country, c.cfg.DefaultCountryISO))
			if err != nil {
				return err
			}
			entries, available, err := c.svc.Pool.ListAvailable(cmd.Context(), iso, nt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"country": iso, "numbers": entries, "available": available})
		},
	}
	list.Flags().StringVar(&country, "country", "", "ISO country (default DEFAULT_COUNTRY_ISO)")
	list.Flags().StringVar(&numberType, "type", "", "mobile, local or national (default all)")

	provision := &cobra.Command{
		Use:   "provision",
		Short: "Buy numbers from the carrier and add them to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			nt, err := domain.ParseNumberType(typeOrDefault(numberType, c.cfg.DefaultNumberType))
			if err != nil {
				return err
			}
			order := domain.Only(nt)
			if fallback {
				order = domain.WithFallback(nt)
			}
			results, err := c.svc.Pool.Provision(cmd.Context(), countryOrDefault(country, c.cfg.DefaultCountryISO), order, quantity)
			if printErr := printJSON(cmd.OutOrStdout(), results); printErr != nil {
				return printErr
			}
			return err
		},
	}
	provision.Flags().StringVar(&country, "country", "", "ISO country (default DEFAULT_COUNTRY_ISO)")
	provision.Flags().StringVar(&numberType, "type", "", "mobile, local or national (default DEFAULT_NUMBER_TYPE)")
	provision.Flags().IntVar(&quantity, "quantity", 1, "Numbers to buy")
	provision.Flags().BoolVar(&fallback, "fallback", false, "Fill the remainder with the other number type")

	release := &cobra.Command{
		Use:   "release",
		Short: "Release every row reserved under a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.svc.Pool.Release(cmd.Context(), token)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"released": n})
		},
	}
	release.Flags().StringVar(&token, "token", "", "Reservation token")
	_ = release.MarkFlagRequired("token")

	remove := &cobra.Command{
		Use:   "remove [phone]",
		Short: "Purge a number from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := c.svc.Pool.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	rewire := &cobra.Command{
		Use:   "rewire",
		Short: "Re-apply carrier webhooks to existing numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.svc.Pool.RewireWebhooks(cmd.Context(), app.RewireFilter{
				Country: country,
				Status:  domain.PoolStatus(status),
			}, dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	rewire.Flags().StringVar(&country, "country", "", "Only numbers of this ISO country")
	rewire.Flags().StringVar(&status, "status", "", "Only numbers in this status (available, reserved, assigned)")
	rewire.Flags().BoolVar(&dryRun, "dry-run", false, "List matching numbers without calling the carrier")

	cmd.AddCommand(list, provision, release, remove, rewire)
	return cmd
}

func countryOrDefault(country, fallback string) string {
	if country != "" {
		return country
	}
	return fallback
}

func typeOrDefault(numberType, fallback string) string {
	if numberType != "" {
		return numberType
	}
	return fallback
}
