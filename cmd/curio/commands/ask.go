package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/engine"
	"github.com/curio-ai/curio-go/internal/logging"
)

// NewAskCmd constructs the `curio ask` command, which answers a single
// question against a researched topic and prints the result.
func NewAskCmd() *cobra.Command {
	var topicID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about a researched topic",
		Long: `Ask a question against a topic's indexed material.

The answer is grounded in the chunks retrieved from the topic's vector
collection, and comes back with its sources and a confidence score.

Examples:
  curio ask --topic rust_programming_language "who designed Rust?"
  curio ask -t great_barrier_reef "how large is the reef?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if topicID == "" {
				return fmt.Errorf("ask: --topic is required")
			}

			a, cleanup, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			if err := a.engine.SetActiveTopic(ctx, topicID); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			result, err := a.engine.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			printAnswer(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&topicID, "topic", "t", "", "Topic id to answer against (required)")

	return cmd
}

// printAnswer renders an answer with its provenance to stdout.
func printAnswer(result *engine.AnswerResult) {
	fmt.Println(result.Answer)
	for _, w := range result.Warnings {
		fmt.Printf("\nnote: %s\n", w)
	}
	if len(result.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(result.Sources, ", "))
	}
	fmt.Printf("Confidence: %d%% (%d chunks)\n", result.Confidence, result.ChunksUsed)
}
