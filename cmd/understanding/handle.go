package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
)

func newHandleCmd(configPath *string) *cobra.Command {
	var (
		opts  pipeline.Options
		kinds []string
	)

	cmd := &cobra.Command{
		Use:   "handle <text>",
		Short: "Understand one message and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			a, err := wireApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, k := range kinds {
				opts.KindsOverride = append(opts.KindsOverride, models.MemoryKind(k))
			}
			if opts.UserID == "" {
				opts.UserID = cfg.UserID
			}
			res, err := a.pipeline.HandleUtterance(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().IntVar(&opts.TopK, "top-k", 0, "context records to retrieve")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "memory kinds to search")
	cmd.Flags().StringVar(&opts.UserTimeZone, "tz", "", "IANA time zone for relative dates")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (defaults to UNDERSTANDING_USER_ID)")
	cmd.Flags().BoolVar(&opts.Plan, "plan", false, "also plan and execute the routed action")
	return cmd
}
