package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"parley/internal/transcript"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <chat-id>",
	Short: "Export a conversation transcript as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.selectChat(cmd.Context(), args[0]); err != nil {
			return err
		}
		chat, ok := a.ctrl.Active()
		if !ok {
			return fmt.Errorf("conversation not selected")
		}

		var w io.Writer = os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		return transcript.Export(w, chat, a.ctrl.Messages())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write transcript to file instead of stdout")
}
