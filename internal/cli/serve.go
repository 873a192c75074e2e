package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcigo/mci/internal/metrics"
	"github.com/mcigo/mci/pkg/client"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch a schema file and expose execution metrics",
	Long: `Load the schema file, hot-reload it on change, and serve the Prometheus
metrics endpoint until interrupted. Intended for embedding hosts that
execute tools through the same schema file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "metrics listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	m := metrics.NewMetrics()

	c, err := client.New(resolveSchemaPath(), client.WithMetrics(m), client.WithWatch())
	if err != nil {
		return err
	}
	defer c.Close()

	listen := serveListen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().
		Str("listen", listen).
		Str("schema", c.Schema().SchemaVersion).
		Int("tools", len(c.Tools())).
		Msg("Serving metrics")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		return srv.Close()
	}
}
