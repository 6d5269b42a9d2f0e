package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

func (c *cli) clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Create and inspect clients",
	}

	var (
		contact    domain.Contact
		country    string
		numberType string
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a client and bind a proxy number to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			nt, err := domain.ParseNumberType(typeOrDefault(numberType, c.cfg.DefaultNumberType))
			if err != nil {
				return err
			}
			client, err := c.svc.Clients.Create(cmd.Context(), app.CreateClientRequest{
				Contact:    contact,
				CountryISO: countryOrDefault(country, c.cfg.DefaultCountryISO),
				NumberType: nt,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), client)
		},
	}
	contactFlags(create, &contact)
	create.Flags().StringVar(&country, "country", "", "ISO country of the proxy (default DEFAULT_COUNTRY_ISO)")
	create.Flags().StringVar(&numberType, "type", "", "mobile, local or national (default DEFAULT_NUMBER_TYPE)")

	show := &cobra.Command{
		Use:   "show [client-id]",
		Short: "Show one client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			client, err := c.svc.Clients.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), client)
		},
	}

	update := &cobra.Command{
		Use:   "update [client-id]",
		Short: "Change a client's contact details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			if contact.IsZero() {
				return fmt.Errorf("nothing to update: pass --name, --mail or --phone")
			}
			client, fields, err := c.svc.Clients.UpdateContact(cmd.Context(), id, contact)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"client": client, "updated_fields": fields})
		},
	}
	contactFlags(update, &contact)

	cmd.AddCommand(create, show, update)
	return cmd
}

func parseClientID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("client_id", "expected a positive integer", raw)
	}
	return id, nil
}
