package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chazu/brushcsg/pkg/change"
	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/config"
	"github.com/chazu/brushcsg/pkg/engine"
	"github.com/chazu/brushcsg/pkg/graph"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "brushcsg",
		Short: "Evaluate convex-brush CSG scenes",
		Long: `brushcsg evaluates scenes of convex brushes combined with additive,
subtractive and intersecting operations, and reports the render and
collider meshes each model produces.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional.
			_ = godotenv.Load()
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = cfg.NewLogger(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "brushcsg.yaml", "configuration file (YAML or JSON)")

	root.AddCommand(
		newEvalCmd(c),
		newRoutesCmd(c),
		newPreviewCmd(c),
	)
	return root
}

// loadScene evaluates the scene source at path.
func (c *cli) loadScene(path string) (*graph.Scene, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scene, warns, evalErrs, err := engine.NewEngine().EvaluateWithWarnings(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = fmt.Errorf("%s: %w", path, e)
		}
		return nil, errors.Join(errs...)
	}
	for _, w := range warns {
		c.logger.Warn(w.Message, "file", path, "node", w.NodeID)
	}
	return scene, nil
}

// pickModel resolves a model by name, defaulting to the first model of the
// scene.
func pickModel(scene *graph.Scene, name string) (*graph.Node, error) {
	if name == "" {
		models := scene.Models()
		if len(models) == 0 {
			return nil, errors.New("scene declares no models")
		}
		return scene.Node(models[0]), nil
	}
	n := scene.Lookup(name)
	if n == nil || n.Kind != graph.KindModel {
		return nil, fmt.Errorf("no model named %q", name)
	}
	return n, nil
}

// flatten hashes and flattens one model outside an evaluator pass.
func flatten(scene *graph.Scene, model graph.NodeID) (*compact.Tree, error) {
	h := change.NewHasher()
	h.Begin(scene)
	return compact.Flatten(scene, model, h.Hash(model))
}

func nodeName(scene *graph.Scene, id graph.NodeID) string {
	if n := scene.Node(id); n != nil && n.Name != "" {
		return n.Name
	}
	return id.String()
}
