// Command ingestd is a small demo binary showing how an application wires
// config, plugins and the native adapter into a running PluginHost.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ingest "github.com/ingestfw/ingest"
	"github.com/ingestfw/ingest/adapters"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var addr string

	root := &cobra.Command{
		Use:   "ingestd",
		Short: "Demo server built on the ingest framework",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd(configPath, addr)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to a config file (yaml/ini); optional")
	serve.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")

	root.AddCommand(serve)
	return root
}

func serveCmd(configPath, addr string) error {
	host := newHost(configPath)

	if err := host.Bootstrap(); err != nil {
		return fmt.Errorf("ingestd: bootstrap: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", adapters.Native(host, "ingest_session", sessionSecret(host)))

	host.Logger.Info("listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

// newHost builds the demo PluginHost: config loading, a metrics plugin,
// and two illustrative routes (a JSON health check and an HTML home page
// showing the registered welcome message) registered on the "route" event
// per the bootstrap contract.
func newHost(configPath string) *ingest.PluginHost {
	host := ingest.NewPluginHost()

	host.Config.SetEnvPrefix("INGEST")
	host.Config.AutomaticEnv()
	host.Config.SetDefault("welcome_message", "Welcome to Ingest.")
	if configPath != "" {
		host.Config.SetConfigFile(configPath)
		_ = host.Config.ReadInConfig()
	}

	metrics := ingest.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		host.Logger.Warn("metrics already registered", zap.Error(err))
	}
	host.AddPlugin(metrics.Instrument())

	host.AddPlugin(func(h *ingest.PluginHost) error {
		h.Register("welcome_message", h.Config.GetString("welcome_message"))
		return nil
	})

	host.On("route", ingest.CallableAction(func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
		ctx.Get("/health", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
			res.SetJSON(map[string]string{"status": "ok"})
			return true, nil
		}, 0)

		ctx.Get("/", func(req *ingest.Request, res *ingest.Response, ctx *ingest.PluginHost) (bool, error) {
			msg, _ := ctx.Plugin("welcome_message")
			res.SetHTML(fmt.Sprintf("<h1>%v</h1>", msg))
			return true, nil
		}, 0)

		return true, nil
	}), 0)

	return host
}

func sessionSecret(host *ingest.PluginHost) []byte {
	secret := host.Config.GetString("session_secret")
	if secret == "" {
		return nil
	}
	return []byte(secret)
}
