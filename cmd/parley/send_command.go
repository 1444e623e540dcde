package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"parley/internal/controller"
	"parley/internal/stream"
	"parley/pkg/chattypes"
)

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> <message...>",
	Short: "Send a message and stream the assistant's reply",
	Long: `Send a message to a conversation and stream the assistant's reply to
stdout as it is generated. Press Ctrl-C to cancel the generation; a
canceled reply is discarded, not saved.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := restored(ctx)
		if err != nil {
			return err
		}
		if err := a.selectChat(ctx, args[0]); err != nil {
			return err
		}

		// Print each fragment as it arrives: the snapshot carries the
		// cumulative text, so emit only the unseen suffix.
		var mu sync.Mutex
		printed := 0
		a.ctrl.Subscribe(func(snap controller.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			if snap.Generation == chattypes.GenerationIdle {
				return
			}
			if len(snap.StreamText) > printed {
				fmt.Print(snap.StreamText[printed:])
				printed = len(snap.StreamText)
			}
		})

		go func() {
			<-ctx.Done()
			a.ctrl.Cancel()
		}()

		if err := a.ctrl.Send(ctx, strings.Join(args[1:], " ")); err != nil {
			return err
		}

		// Wait on a fresh context: Ctrl-C cancels the generation, and
		// the cancel itself unblocks this wait.
		err = a.ctrl.Wait(context.Background())
		fmt.Println()
		if errors.Is(err, stream.ErrCanceled) {
			fmt.Fprintln(os.Stderr, "Generation canceled; reply discarded.")
			return nil
		}
		return err
	},
}
