package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage conversations",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.ctrl.Refresh(cmd.Context()); err != nil {
			return err
		}
		chats := a.ctrl.Conversations()
		if len(chats) == 0 {
			fmt.Println("No conversations yet. Create one with 'parley chats new'.")
			return nil
		}
		for _, chat := range chats {
			name := chat.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %s\n", chat.ID, name)
		}
		return nil
	},
}

var chatsNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a conversation (a name is suggested when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		chat, err := a.ctrl.Create(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s  %s\n", chat.ID, chat.Name)
		return nil
	},
}

var chatsRenameCmd = &cobra.Command{
	Use:   "rename <chat-id> <new-name>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.selectChat(cmd.Context(), args[0]); err != nil {
			return err
		}
		return a.ctrl.Rename(cmd.Context(), strings.Join(args[1:], " "))
	},
}

var chatsRmCmd = &cobra.Command{
	Use:   "rm <chat-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.selectChat(cmd.Context(), args[0]); err != nil {
			return err
		}
		return a.ctrl.Delete(cmd.Context())
	},
}

func init() {
	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsNewCmd)
	chatsCmd.AddCommand(chatsRenameCmd)
	chatsCmd.AddCommand(chatsRmCmd)
}
