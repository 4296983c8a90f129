package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/brushcsg/pkg/kernel/sdfx"
	"github.com/chazu/brushcsg/pkg/tessellate"
)

func newPreviewCmd(c *cli) *cobra.Command {
	var (
		modelName string
		cells     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "preview <scene.lisp>",
		Short: "Tessellate a model with the SDF kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := c.loadScene(args[0])
			if err != nil {
				return err
			}
			model, err := pickModel(scene, modelName)
			if err != nil {
				return err
			}
			tree, err := flatten(scene, model.ID)
			if err != nil {
				return err
			}

			k := sdfx.New()
			k.Cells = c.cfg.Preview.Cells
			if cells > 0 {
				k.Cells = cells
			}
			mesh, err := tessellate.Model(tree, scene, k)
			if err != nil {
				return err
			}
			mesh.Name = model.Name

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				return enc.Encode(mesh)
			}
			lo, hi := mesh.Bounds()
			fmt.Fprintf(out, "%s: %d triangles, bounds %v .. %v\n", model.Name, mesh.TriangleCount(), lo, hi)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model name (default: first model)")
	cmd.Flags().IntVar(&cells, "cells", 0, "marching cubes cells along the longest axis")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the mesh as JSON")
	return cmd
}
