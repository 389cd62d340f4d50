package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"git.ruekov.eu/ruakij/partStreamer/internal/artifact"
	"git.ruekov.eu/ruakij/partStreamer/internal/service/artifactservice"
	"git.ruekov.eu/ruakij/partStreamer/pkg/streamio"
)

type cmdCat struct {
	global *cmdGlobal

	flagOffset int64
	flagLength int64
	flagLines  int
}

func (c *cmdCat) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "cat <folder> <name>"
	cmd.Short = "Write a split file to stdout"
	cmd.Long = `Writes the file made of the parts of <name> in <folder> to stdout, reading the parts in place.`
	cmd.Example = `  partstreamer cat ./downloads movie.mkv --offset 1048576 --length 512`
	cmd.Args = cobra.ExactArgs(2)
	cmd.RunE = c.Run

	cmd.Flags().Int64Var(&c.flagOffset, "offset", 0, "Start at this byte; negative counts from the end")
	cmd.Flags().Int64Var(&c.flagLength, "length", -1, "Write at most this many bytes")
	cmd.Flags().IntVar(&c.flagLines, "lines", 0, "Write only this many lines")
	return cmd
}

func (c *cmdCat) Run(cmd *cobra.Command, args []string) error {
	if err := c.global.setupLogging(defaultLogLevel()); err != nil {
		return err
	}
	return c.cat(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
}

func findArtifact(folder, name string) (*artifact.Artifact, error) {
	artifacts, err := artifact.FromFolder(folder)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(artifacts))
	for i := range artifacts {
		if artifacts[i].Name == name {
			return &artifacts[i], nil
		}
		names = append(names, artifacts[i].Name)
	}
	return nil, artifactservice.NotFoundError(name, names)
}

func (c *cmdCat) cat(ctx context.Context, w io.Writer, folder, name string) error {
	a, err := findArtifact(folder, name)
	if err != nil {
		return err
	}

	stream, err := a.Resource().OpenContext(ctx)
	if err != nil {
		return fmt.Errorf("failed opening %s: %w", name, err)
	}
	defer stream.CloseContext(ctx)

	whence := io.SeekStart
	if c.flagOffset < 0 {
		whence = io.SeekEnd
	}
	if _, err := stream.SeekContext(ctx, c.flagOffset, whence); err != nil {
		return fmt.Errorf("failed seeking to %d: %w", c.flagOffset, err)
	}

	if c.flagLines > 0 {
		for range c.flagLines {
			line, err := streamio.ReadLine(ctx, stream, -1)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
		}
		return nil
	}

	r := streamio.NewReader(ctx, stream)
	if c.flagLength < 0 {
		_, err = io.Copy(w, r)
		return err
	}
	_, err = io.CopyN(w, r, c.flagLength)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
