package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/pipeline"
)

func newEvalCmd(c *cli) *cobra.Command {
	var buffers bool
	cmd := &cobra.Command{
		Use:   "eval <scene.lisp>",
		Short: "Run an evaluation pass and print the meshes of every model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := c.loadScene(args[0])
			if err != nil {
				return err
			}
			ev, err := pipeline.New(c.cfg.Options(c.logger))
			if err != nil {
				return err
			}
			rep, err := ev.Update(cmd.Context(), scene)
			printReport(cmd.OutOrStdout(), scene, ev, rep, buffers)
			return err
		},
	}
	cmd.Flags().BoolVar(&buffers, "buffers", false, "list every mesh buffer")
	return cmd
}

func printReport(w io.Writer, scene *graph.Scene, host pipeline.Host, rep *pipeline.Report, buffers bool) {
	if rep == nil {
		return
	}
	fmt.Fprintf(w, "pass %s in %s\n", rep.PassID, rep.Duration)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tBRUSHES\tGENERATED\tMESHES\tMAX\tTRIANGLES\tPUBLISHED")
	for _, m := range rep.Models {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
			nodeName(scene, m.Model), m.Brushes, m.Generated, m.Meshes, m.MaxMeshes, m.Triangles, m.Published)
	}
	tw.Flush()

	if buffers {
		for _, m := range rep.Models {
			meshes := host.Meshes(m.Model)
			if meshes == nil {
				continue
			}
			for _, b := range meshes.Buffers {
				fmt.Fprintf(w, "  %s %s vertices=%d triangles=%d\n",
					nodeName(scene, m.Model), b.Key, b.VertexCount(), b.TriangleCount())
			}
		}
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "error: %v\n", e)
	}
}
