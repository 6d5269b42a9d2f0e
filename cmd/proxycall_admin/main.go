package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tech-Aware/ProxyCall/internal/platform/config"
	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/bootstrap"
)

const appName = "proxycall-admin"

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	store   string
	verbose bool
	timeout time.Duration

	cfg    *config.Config
	log    *slog.Logger
	svc    *bootstrap.Service
	cancel context.CancelFunc
}

// newRootCmd builds the command tree. The returned cleanup closes whatever
// setup opened and must run even when the command fails.
func newRootCmd() (*cobra.Command, func()) {
	c := &cli{}
	root := &cobra.Command{
		Use:   "proxycall-admin",
		Short: "Administer the ProxyCall number pool, confirmations and clients",
		Long: `proxycall-admin runs pool, confirmation and client operations directly
against the configured store, without going through the HTTP service.

Configuration is read the same way as the service: configs/config.defaults.yaml,
.env files and APP_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVar(&c.store, "store", "", "Override STORE_BACKEND (postgres or memory)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log to stderr")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(c.poolCmd(), c.confirmationsCmd(), c.clientsCmd(), c.routeCmd())
	return root, c.teardown
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(appName)
	if err != nil {
		return err
	}
	if c.store != "" {
		cfg.StoreBackend = c.store
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.cfg = cfg
	c.log = logger.Discard()
	if c.verbose {
		c.log = logger.NewWithWriter(os.Stderr, "debug")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	c.cancel = cancel
	cmd.SetContext(ctx)

	svc, err := bootstrap.Build(ctx, cfg, c.log, bootstrap.Options{AppName: appName, SkipReplayGuard: true})
	if err != nil {
		cancel()
		return err
	}
	c.svc = svc
	return nil
}

func (c *cli) teardown() {
	if c.svc != nil {
		c.svc.Close()
		c.svc = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(context.Background())
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
