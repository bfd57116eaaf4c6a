package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zsiec/cloudstream/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show a live dashboard of a running cloudstream server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			model := monitor.NewModel(monitor.NewClient(addr, nil), addr, interval)
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Base URL of the cloudstream server")
	cmd.Flags().DurationVar(&interval, "interval", monitor.DefaultInterval, "Poll interval")
	return cmd
}
