package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Open a terminal Q&A session over one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The TUI owns the terminal; keep logs to warnings and above.
	if cfg.Log.Level == "" || cfg.Log.Level == "info" || cfg.Log.Level == "debug" {
		cfg.Log.Level = "warn"
	}
	a, err := buildApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ing, err := a.svc.IngestUpload(cmd.Context(), filepath.Base(path), data, nil)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if ing.Extraction.Truncated {
		cmd.PrintErrf("warning: read %d of %d pages before the extraction timeout\n",
			ing.Extraction.PagesRead, ing.Extraction.NumPages)
	}
	summary, err := a.svc.Summary(ing.Session.ID)
	if err != nil {
		return err
	}

	m := tui.New(a.svc, ing.Session.ID, ing.Session.DocName, summary)
	_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
	return err
}
