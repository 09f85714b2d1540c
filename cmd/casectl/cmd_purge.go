package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"casedesk/internal/app"
	"casedesk/internal/cases/retention"
)

var purgeTargets = map[string][]string{
	"archive": {retention.TaskPurgeArchive},
	"audit":   {retention.TaskPurgeAudit},
	"all":     retention.Tasks(),
}

func newPurgeCmd() *cobra.Command {
	var flags struct {
		target  string
		enqueue bool
	}
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove archived cases and audit history past their retention",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, ok := purgeTargets[flags.target]
			if !ok {
				return fmt.Errorf("unknown target %q: want archive, audit or all", flags.target)
			}
			cfg, log, err := env(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if flags.enqueue {
				if cfg.Redis.URL == "" {
					return app.ErrRedisRequired
				}
				opt, err := asynq.ParseRedisURI(cfg.Redis.URL)
				if err != nil {
					return fmt.Errorf("parse REDIS_URL: %w", err)
				}
				client := asynq.NewClient(opt)
				defer client.Close()
				for _, task := range tasks {
					if err := retention.Enqueue(cmd.Context(), client, task); err != nil {
						return err
					}
					fmt.Fprintf(out, "enqueued %s\n", task)
				}
				return nil
			}

			backends, err := openBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer backends.Close()
			processor := backends.Retention()
			for _, task := range tasks {
				n, err := processor.Run(cmd.Context(), task)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: purged %d\n", task, n)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.target, "target", "all", "What to purge: archive, audit or all")
	f.BoolVar(&flags.enqueue, "enqueue", false, "Hand the purge to the worker instead of running it here")
	return cmd
}
