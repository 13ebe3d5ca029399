package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/logging"
	"github.com/curio-ai/curio-go/internal/rag"
	"github.com/curio-ai/curio-go/internal/server"
	"github.com/curio-ai/curio-go/internal/tracing"
)

// NewServeCmd constructs the `curio serve` command, which exposes the answer
// engine over a JSON HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the curio HTTP API server",
		Long: `Start the curio HTTP server on localhost.

The server exposes the research and question-answering operations as a JSON
API, plus health, readiness, and Prometheus metrics endpoints. Set
CURIO_API_KEY to require Bearer authentication on the API routes.

Examples:
  curio serve
  curio serve --port 9090
  MODEL_PROVIDER=azure curio serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			a, cleanup, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			var pingers []server.Pinger
			pingers = append(pingers, server.NewModelPinger(a.chatModel,
				getEnvOrDefault("MODEL_PROVIDER", "ollama")))
			if qs, isQdrant := a.vectors.(*rag.QdrantStore); isQdrant {
				pingers = append(pingers, server.NewQdrantPinger(qs.Client()))
			}

			srv, err := server.New(a.engine, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("CURIO_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
