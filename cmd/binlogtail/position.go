package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vczyh/mysql-cdc/config"
)

func newPositionCommand(v *viper.Viper, file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "position",
		Short: "Print the position saved in the configured store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v, *file)
			if err != nil {
				return err
			}
			store, err := c.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no position store is configured")
			}
			defer store.Close()

			p, ok, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "no position saved")
				return nil
			}
			fmt.Fprintf(out, "file: %s\npos: %d\n", p.Name, p.Pos)
			if p.IsGTID() {
				fmt.Fprintf(out, "gtid_set: %s\n", p.GTIDSet)
			}
			return nil
		},
	}
}
