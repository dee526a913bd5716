package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewObjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects",
		Short: "List object configurations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := boot(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OBJECT\tSCOPE\tCLASS\tSOURCE")
			for _, name := range rt.Objects.Names() {
				conf, _ := rt.Objects.Configuration(name)
				if conf.AliasOf != "" {
					fmt.Fprintf(w, "%s\t-\t-> %s\t%s\n", name, conf.AliasOf, conf.Source)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, conf.Scope, conf.Class, conf.Source)
			}
			return w.Flush()
		},
	}
}
