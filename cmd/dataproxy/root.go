package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storj-thirdparty/dataproxy/pkg/config"
)

// version is overridden at release build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "dataproxy",
		Short: "S3-compatible pull-replicating object proxy",
	}

	config.BindFlags(root, v, config.Defaults())

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newReplicateOnceCmd(v))
	root.AddCommand(newVersionCmd())

	return root
}
