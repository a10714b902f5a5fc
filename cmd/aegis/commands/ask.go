package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askThreadID string

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask a single security question and print the advisory",
	Long: `Ask sends one query through the advisory pipeline and prints the
final answer. Use --thread to continue an existing conversation thread,
which requires the redis checkpoint backend to span process restarts.

Examples:
  aegis ask "is 44d88612fea8a8f36de82e1278abb02f malicious?"
  aegis ask --thread triage-42 "what should we do next?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askThreadID, "thread", "",
		"Conversation thread id (random for a fresh thread)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	engine, auditor, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer auditor.LogSessionEnd()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	threadID := askThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	answer := engine.TeamResponse(ctx, args[0], threadID)
	fmt.Println(answer)
	return nil
}
