package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curio-ai/curio-go/internal/logging"
)

// NewChatCmd constructs the `curio chat` command: an interactive loop that
// keeps conversation history so follow-up questions can lean on earlier
// exchanges.
func NewChatCmd() *cobra.Command {
	var topicID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question-answering session",
		Long: `Start an interactive session against a researched topic.

Recent exchanges are carried into each prompt, so "why is that?" works.
In-session commands:
  /topic <id>   switch to another researched topic (clears history)
  /clear        clear the conversation history
  /topics       list researched topics
  /quit         exit

Examples:
  curio chat --topic rust_programming_language`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, cleanup, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			if topicID != "" {
				if err := a.engine.SetActiveTopic(ctx, topicID); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Printf("Topic set to %q. Ask away.\n", topicID)
			} else {
				fmt.Println("No topic set. Use /topic <id> to pick one, or /topics to list them.")
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				if strings.HasPrefix(line, "/") {
					quit, err := runChatCommand(cmd, a, line)
					if err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
					}
					if quit {
						return nil
					}
					continue
				}

				result, err := a.engine.Answer(ctx, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				printAnswer(result)
				fmt.Println()
			}
		},
	}

	cmd.Flags().StringVarP(&topicID, "topic", "t", "", "Topic id to start the session with")

	return cmd
}

// runChatCommand handles an in-session /command line. Returns true when the
// session should end.
func runChatCommand(cmd *cobra.Command, a *app, line string) (bool, error) {
	ctx := cmd.Context()
	name, arg, _ := strings.Cut(line, " ")

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/topic":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return false, fmt.Errorf("usage: /topic <id>")
		}
		if err := a.engine.SetActiveTopic(ctx, arg); err != nil {
			return false, err
		}
		fmt.Printf("Topic set to %q.\n", arg)
		return false, nil
	case "/clear":
		if err := a.engine.ClearHistory(ctx); err != nil {
			return false, err
		}
		fmt.Println("History cleared.")
		return false, nil
	case "/topics":
		topics, err := a.engine.ListTopics(ctx)
		if err != nil {
			return false, err
		}
		if len(topics) == 0 {
			fmt.Println("No topics researched yet. Run 'curio research <topic>' first.")
			return false, nil
		}
		for _, id := range topics {
			fmt.Printf("  %s\n", id)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
}
