package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
)

type cmdLs struct {
	global *cmdGlobal
}

func (c *cmdLs) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "ls <folder>"
	cmd.Short = "List the split files found in a folder"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run
	return cmd
}

func (c *cmdLs) Run(cmd *cobra.Command, args []string) error {
	if err := c.global.setupLogging(defaultLogLevel()); err != nil {
		return err
	}
	return c.list(cmd.Context(), cmd.OutOrStdout(), args[0])
}

func (c *cmdLs) list(ctx context.Context, w io.Writer, folder string) error {
	artifacts, err := artifact.FromFolder(folder)
	if err != nil {
		return err
	}
	slices.SortFunc(artifacts, func(a, b artifact.Artifact) int {
		return strings.Compare(a.Name, b.Name)
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARTS\tSIZE")
	for i := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		a := &artifacts[i]

		size, err := a.Resource().Size()
		if err != nil {
			logger.Warn("Couldnt get size", "artifact", a.Name, "err", err)
			fmt.Fprintf(tw, "%s\t%d\t?\n", a.Name, len(a.Parts))
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", a.Name, len(a.Parts), size)
	}
	return tw.Flush()
}
