package cli

import (
	"encoding/json"
	"fmt"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/config"
	"github.com/spf13/cobra"
)

// NewStatsCmd prints the statistics and recent history of one user.
func NewStatsCmd(configPath *string) *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a user's practice statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeFn, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := service.Statistics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			history, err := service.History(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Statistics any `json:"statistics"`
				History    any `json:"history"`
			}{stats, history})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", app.DefaultHistoryLimit, "number of history records")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewResetCmd recreates a user's aggregate at zero.
func NewResetCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a user's practice statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeFn, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := service.ResetStatistics(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "statistics of %s reset\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func openService(cmd *cobra.Command, configPath string) (*app.ProgressService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	b, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	service := app.NewProgressService(b.sessions, b.aggregates, b.checkpoints, progressOptions(cfg))
	return service, b.Close, nil
}
