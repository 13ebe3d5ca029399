package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/logging"
)

// NewTopicsCmd constructs the `curio topics` command for listing,
// inspecting, and deleting researched topics.
func NewTopicsCmd() *cobra.Command {
	var statsID string
	var deleteID string

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List, inspect, or delete researched topics",
		Long: `Manage the per-topic vector collections.

Without flags, lists every researched topic id. --stats shows chunk and
source counts for one topic; --delete removes a topic's collection.

Examples:
  curio topics
  curio topics --stats rust_programming_language
  curio topics --delete great_barrier_reef`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, cleanup, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("topics: %w", err)
			}
			defer cleanup()

			switch {
			case deleteID != "":
				if err := a.engine.DeleteTopic(ctx, deleteID); err != nil {
					return fmt.Errorf("topics: %w", err)
				}
				fmt.Printf("Deleted topic %q.\n", deleteID)
				return nil

			case statsID != "":
				stats, err := a.engine.TopicStats(ctx, statsID)
				if err != nil {
					return fmt.Errorf("topics: %w", err)
				}
				fmt.Printf("%s: %d chunks from %d sources\n",
					stats.TopicID, stats.TotalChunks, len(stats.Sources))
				if len(stats.Sources) > 0 {
					fmt.Printf("  %s\n", strings.Join(stats.Sources, "\n  "))
				}
				return nil

			default:
				topics, err := a.engine.ListTopics(ctx)
				if err != nil {
					return fmt.Errorf("topics: %w", err)
				}
				if len(topics) == 0 {
					fmt.Println("No topics researched yet. Run 'curio research <topic>' first.")
					return nil
				}
				for _, id := range topics {
					fmt.Println(id)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&statsID, "stats", "", "Show chunk/source stats for the given topic id")
	cmd.Flags().StringVar(&deleteID, "delete", "", "Delete the given topic's collection")
	cmd.MarkFlagsMutuallyExclusive("stats", "delete")

	return cmd
}
