package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/routing"
)

func newRoutesCmd(c *cli) *cobra.Command {
	var modelName, brushName string
	cmd := &cobra.Command{
		Use:   "routes <scene.lisp>",
		Short: "Print the routing tables of a brush",
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
			brush := scene.Lookup(brushName)
			if brush == nil {
				return fmt.Errorf("no brush named %q", brushName)
			}
			tree, err := flatten(scene, model.ID)
			if err != nil {
				return err
			}

			opts := c.cfg.Options(c.logger)
			res, err := intersect.NewIndex(opts.Index, c.logger).Update(tree, scene)
			if err != nil {
				return err
			}
			builder, err := routing.NewBuilder(opts.RoutingCacheSize, c.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			found := 0
			for i, d := range tree.Brushes {
				if d.NodeID != brush.ID {
					continue
				}
				found++
				table, err := builder.Build(tree, res, i)
				if err != nil {
					return fmt.Errorf("brush %s instance %d: %w", brushName, found, err)
				}
				fmt.Fprintf(out, "instance %016x\n%s", d.Path, table)
			}
			if found == 0 {
				return fmt.Errorf("brush %q is not part of model %q", brushName, model.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model name (default: first model)")
	cmd.Flags().StringVar(&brushName, "brush", "", "brush name")
	_ = cmd.MarkFlagRequired("brush")
	return cmd
}
