package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storj-thirdparty/dataproxy/pkg/config"
)

func newReplicateOnceCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "replicate-once",
		Short: "run a single replication scheduler pass against every known endpoint and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.log.Sync() //nolint:errcheck

			sched := newScheduler(rt)
			sched.RunOnce(cmd.Context())
			return nil
		},
	}
}
