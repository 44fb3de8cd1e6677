package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vczyh/mysql-cdc/config"
)

func newRootCommand() *cobra.Command {
	v := config.New()
	var file string

	root := &cobra.Command{
		Use:   "binlogtail",
		Short: "binlogtail streams the binlog of a MySQL server as a replica.",
		Long: "binlogtail registers with a MySQL source as a replica, logs every binlog event it receives\n" +
			"and persists the position it has processed up to, so that a restart resumes there.\n\n" +
			"Settings come from the config file and BINLOGTAIL_* environment variables,\n" +
			"e.g. BINLOGTAIL_SOURCE_PASSWORD for source.password.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v, file)
			if err != nil {
				return err
			}
			return stream(cmd.Context(), c)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&file, "config", "c", "", "config file, YAML, TOML or JSON")
	flags.String("host", "", "source host")
	flags.Int("port", 0, "source port")
	flags.StringP("user", "u", "", "replication user")
	flags.StringP("password", "p", "", "replication password")
	flags.Uint32("server-id", 0, "server id to register with, random when 0")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("metrics-addr", "", "serve /metrics on this address")

	bind(v, root, map[string]string{
		"source.host":       "host",
		"source.port":       "port",
		"source.user":       "user",
		"source.password":   "password",
		"replica.server_id": "server-id",
		"log.level":         "log-level",
		"metrics.addr":      "metrics-addr",
	})

	root.AddCommand(newPositionCommand(v, &file))
	return root
}

// bind lets flags override config keys. A flag only wins when it was set.
func bind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
