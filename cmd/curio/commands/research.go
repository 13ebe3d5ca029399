package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/logging"
)

// NewResearchCmd constructs the `curio research` command, which runs the
// full ingestion pipeline for a topic and reports what was indexed.
func NewResearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "research [topic]",
		Short: "Research a topic and index it for question answering",
		Long: `Research a topic through web search and index the results.

curio issues several search queries about the topic, splits the results into
chunks, embeds each chunk, and stores the vectors in a per-topic collection.
Afterwards the topic can be questioned with 'curio ask' or 'curio chat'.

Required environment variables:
  SERPER_API_KEY       Serper.dev web search API key
  MODEL_PROVIDER       Embedding/generation backend (default: ollama)
  QDRANT_HOST          Qdrant hostname; unset falls back to an in-memory index

Examples:
  curio research "Rust (programming language)"
  curio research "Great Barrier Reef"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, cleanup, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("research: %w", err)
			}
			defer cleanup()

			name := strings.Join(args, " ")
			report, err := a.engine.IngestTopic(ctx, name)
			if err != nil {
				return fmt.Errorf("research: %w", err)
			}

			fmt.Printf("Indexed %d chunks for topic %q from %d sources:\n",
				report.Chunks, report.TopicID, len(report.Sources))
			for _, src := range report.Sources {
				fmt.Printf("  - %s\n", src)
			}
			fmt.Printf("\nAsk away: curio ask --topic %s \"your question\"\n", report.TopicID)
			return nil
		},
	}
}
