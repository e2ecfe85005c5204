// Command httpserver is the thin, explicitly-unspecified application façade
// spec.md §6 calls out ("the thin application-facing façade (logging setup,
// listen-address parsing, CLI) is not specified"). It exists so the library
// is runnable end to end; it is not part of the importable API surface
// (SPEC_FULL.md §2.4).
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httpserver "github.com/badu/httpserver"
	"github.com/badu/httpserver/config"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func buildDemoRouter(srv *httpserver.Server) {
	srv.Route("/", httpserver.MethodGet, func() httpserver.Response {
		return httpserver.TextResponse(httpserver.StatusOK, "hello")
	})
	srv.Route("/echo/<arg>", httpserver.MethodGet, func(msg string) httpserver.Response {
		return httpserver.TextResponse(httpserver.StatusOK, msg)
	})
}

// newServeCmd's flag defaults come from cfg (SPEC_FULL.md §2.3: "this
// powers the CLI façade"), so an unconfigured environment still falls back
// to cfg's own envconfig defaults, and a configured one (HTTPSERVER_ADDRESS,
// HTTPSERVER_PORT, HTTPSERVER_MAX_HEADER_BYTES, HTTPSERVER_LOG_LEVEL) needs
// no flags passed at all.
func newServeCmd(cfg config.Config) *cobra.Command {
	var addr string
	var port int
	var logLevel string
	var maxHeaderBytes int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start listening and serve the demo route tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return fmt.Errorf("configuring logger: %w", err)
			}
			defer logger.Sync()

			srv := httpserver.NewServer(logger)
			srv.MaxHeaderBytes = maxHeaderBytes
			buildDemoRouter(srv)

			bound, err := srv.Listen(addr, port)
			if err != nil {
				return fmt.Errorf("listen %s:%d: %w", addr, port, err)
			}
			logger.Info("listening", zap.String("address", addr), zap.Int("port", bound))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			<-sig
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "address", cfg.Address, "address to bind")
	flags.IntVar(&port, "port", cfg.Port, "port to bind (0 picks a random free port)")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel, "zap log level")
	flags.Int64Var(&maxHeaderBytes, "max-header-bytes", cfg.MaxHeaderBytes, "maximum header section size in bytes")
	return cmd
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the demo route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			srv := httpserver.NewServer(logger)
			buildDemoRouter(srv)
			fmt.Println("GET    /")
			fmt.Println("GET    /echo/<arg>")
			return nil
		},
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "httpserver",
		Short: "Run the embeddable HTTP/1.1 server library as a standalone process",
	}
	root.AddCommand(newServeCmd(cfg), newRoutesCmd())
	return root
}

func main() {
	pflag.CommandLine.SetNormalizeFunc(pflag.CommandLine.GetNormalizeFunc())
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: ", err)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
