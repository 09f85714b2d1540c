package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"casedesk/pkg/platform/audit/publishers/kafka"
)

func newAuditTopicCmd() *cobra.Command {
	var flags struct {
		partitions  int32
		replication int16
	}
	cmd := &cobra.Command{
		Use:   "audit-topic",
		Short: "Create the Kafka audit topic if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := env(cmd)
			if err != nil {
				return err
			}
			if len(cfg.Audit.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required")
			}
			if err := kafka.EnsureTopic(cmd.Context(), cfg.Audit.KafkaBrokers, cfg.Audit.Topic, flags.partitions, flags.replication); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topic %s ready\n", cfg.Audit.Topic)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int32Var(&flags.partitions, "partitions", 3, "Partition count for a new topic")
	f.Int16Var(&flags.replication, "replication", 1, "Replication factor for a new topic")
	return cmd
}
