package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"parley/internal/api"
	"parley/internal/auth"
	"parley/internal/config"
	"parley/internal/controller"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// termNotifier prints session notifications to the terminal, the CLI
// stand-in for the web UI's toasts.
type termNotifier struct{}

func (termNotifier) Success(msg string) {
	fmt.Fprintln(os.Stderr, successStyle.Render("✓ "+msg))
}

func (termNotifier) Error(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

// app bundles the wired client components for one CLI invocation.
type app struct {
	cfg     *config.Config
	client  *api.Client
	session *auth.Store
	ctrl    *controller.Controller
}

// newApp loads configuration and wires the client stack. The --base-url
// flag overrides the configured backend.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	client := api.New(cfg.BaseURL, cfg.RequestTimeout)
	session := auth.NewStore(client, cfg.TokenPath)
	ctrl := controller.New(cfg, client, session, termNotifier{})
	return &app{cfg: cfg, client: client, session: session, ctrl: ctrl}, nil
}

// restored wires the app and restores the persisted session, failing when
// no valid identity is available.
func restored(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if err := a.session.Restore(ctx); err != nil {
		return nil, err
	}
	if !a.session.Authenticated() {
		return nil, fmt.Errorf("not logged in (run 'parley login')")
	}
	return a, nil
}

// selectChat refreshes the conversation list and makes the given id active.
func (a *app) selectChat(ctx context.Context, chatID string) error {
	if err := a.ctrl.Refresh(ctx); err != nil {
		return err
	}
	return a.ctrl.Select(ctx, chatID)
}
