package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/go-park/flow/pkg/reflection"
	"github.com/go-park/flow/pkg/tools/collections"
)

type ClassesCommand struct {
	annotated []string
	proxied   bool
	json      bool
}

func NewClassesCmd() *cobra.Command {
	c := &ClassesCommand{}
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes of the reflection index",
		Long: `List the classes of the reflection index.

Examples:
  # Aspects and classes carrying @Proxy
  flow classes --annotated Aspect,Proxy

  # Classes with at least one advised method
  flow classes --proxied`,
		RunE: c.run,
	}
	cmd.Flags().StringSliceVarP(&c.annotated, "annotated", "a", nil, "only classes carrying one of these annotations")
	cmd.Flags().BoolVar(&c.proxied, "proxied", false, "only classes with advised methods")
	cmd.Flags().BoolVar(&c.json, "json", false, "print the index snapshot as JSON")
	return cmd
}

func (c *ClassesCommand) run(cmd *cobra.Command, _ []string) error {
	rt, err := boot(cmd.Context(), cmd, nil)
	if err != nil {
		return err
	}
	if c.json {
		data, err := rt.Index.Snapshot()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	classes := collections.Filter(rt.Index.Classes(), func(class *reflection.ClassInfo) bool {
		if _, ok := rt.Proxies[class.Name()]; c.proxied && !ok {
			return false
		}
		return len(c.annotated) == 0 || collections.ContainsAny(class.Annotations().Names(), c.annotated...)
	})
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tKIND\tPROXY\tANNOTATIONS")
	for _, class := range classes {
		_, proxied := rt.Proxies[class.Name()]
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", class.Name(), kind(class), proxied, strings.Join(class.Annotations().Names(), ","))
	}
	return w.Flush()
}

func kind(c *reflection.ClassInfo) string {
	if c.IsInterface() {
		return "interface"
	}
	return "struct"
}
