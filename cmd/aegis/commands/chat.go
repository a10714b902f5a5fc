package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatThreadID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive advisory session",
	Long: `Chat runs an interactive loop against the advisory team. Each line is
one query; follow-up questions stay with the specialist already engaged.

Commands inside the session:
  /quit  end the session`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "",
		"Conversation thread id (random for a fresh thread)")
}

func runChat(cmd *cobra.Command, args []string) error {
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
		fmt.Println("\nShutting down...")
		cancel()
	}()

	threadID := chatThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	fmt.Printf("aegis %s - security advisory session (thread %s)\n", Version, threadID)
	fmt.Println("Type your question, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}
		answer := engine.TeamResponse(ctx, line, threadID)
		fmt.Printf("\n%s\n\n", answer)
	}
	return scanner.Err()
}
