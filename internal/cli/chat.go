package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	chatclient "github.com/croftja/parley/internal/client"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect an interactive chat session",
		Long: `chat connects to the chat server and bridges it to the terminal.

Local commands:
  .mode                    toggle encoded read/write
  /noe <text>              send one message unencoded
  quit() .quit
  disconnect() .disconnect leave the chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var handler slog.Handler = slog.NewTextHandler(io.Discard, nil)
			if cfg.Verbose {
				handler = slog.NewTextHandler(os.Stderr, nil)
			}

			c, err := chatclient.Dial(chatclient.Config{
				Address:     cfg.ChatAddr,
				DialTimeout: 10 * time.Second,
			}, slog.New(handler))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.ChatAddr, err)
			}
			defer func() { _ = c.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", cfg.ChatAddr)

			// Printer goroutine: everything the server says goes to the
			// terminal until the connection drops.
			printDone := make(chan struct{})
			go func() {
				defer close(printDone)
				for line := range c.Lines() {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				notice, quit, err := c.Submit(scanner.Text())
				if notice != "" {
					fmt.Fprintln(cmd.OutOrStdout(), notice)
				}
				if err != nil {
					return fmt.Errorf("send failed: %w", err)
				}
				if quit {
					return nil
				}

				select {
				case <-c.Done():
					fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
					return nil
				default:
				}
			}

			// Stdin closed; wait for the server side to finish printing.
			_ = c.Close()
			<-printDone
			return scanner.Err()
		},
	}
}
