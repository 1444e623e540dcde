package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <phone>",
	Short: "Log in and persist the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		password := loginPassword
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}

		if err := a.session.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Println("Login successful")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		// Restore first so logout clears in-memory state too; a missing
		// or expired token just means there is nothing more to do.
		_ = a.session.Restore(cmd.Context())
		a.session.Logout()
		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user's profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := restored(cmd.Context())
		if err != nil {
			return err
		}
		profile, ok := a.session.Profile()
		if !ok {
			return fmt.Errorf("profile unavailable")
		}
		fmt.Printf("id:             %s\n", profile.ID)
		fmt.Printf("phone:          %s\n", profile.Phone)
		fmt.Printf("referral code:  %s\n", profile.ReferralCode)
		fmt.Printf("phone verified: %t\n", profile.IsPhoneVerified)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
}
