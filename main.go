package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chazu/sdfview/pkg/kernel/sdfx"
	"github.com/chazu/sdfview/pkg/surface"
	"github.com/chazu/sdfview/pkg/viewer"
	"github.com/chazu/sdfview/pkg/watcher"
	"github.com/spf13/cobra"
)

var (
	configPath string
	meshCells  int
)

var rootCmd = &cobra.Command{
	Use:   "sdfview",
	Short: "Signed distance field scene tool",
	Long: `sdfview evaluates Lisp scene scripts into signed distance field trees,
bakes them into distance textures, meshes them and edits their parameters.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "viewer config file (YAML)")
	rootCmd.PersistentFlags().IntVar(&meshCells, "cells", sdfx.DefaultMeshCells, "marching cubes resolution")
	rootCmd.AddCommand(meshCmd(), treeCmd(), paramsCmd(), bakeCmd(), normalCmd(), setCmd(), watchCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig returns the --config file or the defaults.
func loadConfig() (viewer.Config, error) {
	if configPath == "" {
		return viewer.DefaultConfig(), nil
	}
	return viewer.LoadConfig(configPath)
}

// newCLIApp builds an App from the global flags.
func newCLIApp(ctx context.Context) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return NewAppWithConfig(ctx, cfg, &sdfx.SdfxKernel{Cells: meshCells}), nil
}

// evaluateFile reads and evaluates a script, turning reported errors into
// a single error.
func evaluateFile(app *App, path string) (EvalResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return EvalResult{}, err
	}
	result := app.Evaluate(string(source))
	return result, resultError(path, result)
}

func resultError(path string, result EvalResult) error {
	if len(result.Errors) == 0 {
		return nil
	}
	var msgs []string
	for _, e := range result.Errors {
		if e.Line > 0 {
			msgs = append(msgs, fmt.Sprintf("%s:%d: %s", path, e.Line, e.Message))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", path, e.Message))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "\n"))
}

func meshCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "mesh <script>",
		Short: "Mesh a scene and write it as binary STL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := evaluateFile(app, args[0]); err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], ".lisp") + ".stl"
			}
			k := &sdfx.SdfxKernel{Cells: meshCells}
			n, err := k.SaveSTL(app.Scene().Root(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d triangles to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output STL path (default <script>.stl)")
	return cmd
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <script>",
		Short: "Print the surface tree of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := evaluateFile(app, args[0]); err != nil {
				return err
			}
			describe(cmd.OutOrStdout(), app.Scene().Root())
			return nil
		},
	}
}

func paramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params <script>",
		Short: "List the parameters of every surface in a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := evaluateFile(app, args[0])
			if err != nil {
				return err
			}
			printParams(cmd.OutOrStdout(), result.Params)
			return nil
		},
	}
}

func printParams(w io.Writer, nodes []NodeParamsData) {
	for _, n := range nodes {
		fmt.Fprintf(w, "#%d %s\n", n.ID, n.Name)
		for _, p := range n.Params {
			rng := ""
			if p.Bounded {
				rng = fmt.Sprintf(" [%g, %g]", p.Min, p.Max)
			}
			fmt.Fprintf(w, "  %-10s %-6s %s%s  %s\n", p.Key, p.Kind, p.Value, rng, p.Description)
		}
	}
}

func bakeCmd() *cobra.Command {
	var res int
	cmd := &cobra.Command{
		Use:   "bake <script>",
		Short: "Bake a scene into a distance texture and report its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if res > 0 {
				cfg.Bake.Resolution = res
			}
			app := NewAppWithConfig(cmd.Context(), cfg, &sdfx.SdfxKernel{Cells: meshCells})
			if _, err := evaluateFile(app, args[0]); err != nil {
				return err
			}
			tex := app.Scene().Texture()
			inside := 0
			for _, d := range tex.Data {
				if d < 0 {
					inside++
				}
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "grid %dx%dx%d over %v\n", tex.Grid.Res[0], tex.Grid.Res[1], tex.Grid.Res[2], tex.Grid.Bounds)
			fmt.Fprintf(w, "%d of %d voxels inside\n", inside, len(tex.Data))
			return nil
		},
	}
	cmd.Flags().IntVar(&res, "res", 0, "voxels along the longest side (default from config)")
	return cmd
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		out[i] = f
	}
	return out, nil
}

func normalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normal <script> <x> <y> <z>",
		Short: "Print the signed distance and surface normal at a point",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := evaluateFile(app, args[0]); err != nil {
				return err
			}
			n, err := app.Normal(p[0], p[1], p[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "distance %g normal (%g, %g, %g)\n", n.Distance, n.X, n.Y, n.Z)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <script> <id> <key> <value>",
		Short: "Change a parameter and report how many voxels were re-baked",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("id %q: %w", args[1], err)
			}
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := evaluateFile(app, args[0]); err != nil {
				return err
			}
			result := app.SetParameter(uint32(id), args[2], args[3])
			if err := resultError(args[0], result); err != nil {
				return err
			}
			total := app.Scene().Texture().Grid.Len()
			fmt.Fprintf(cmd.OutOrStdout(), "re-baked %d of %d voxels\n", result.Rebaked, total)
			printParams(cmd.OutOrStdout(), result.Params)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-evaluate a scene whenever the script changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newCLIApp(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			reload := func(path string) {
				result, err := evaluateFile(app, path)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				fmt.Fprintf(w, "%s: %d parts, %d nodes with parameters\n", path, len(result.Meshes), len(result.Params))
			}
			reload(args[0])

			fw, err := watcher.NewFileWatcher(watcher.DefaultDebounce)
			if err != nil {
				return err
			}
			defer fw.Close()
			if err := fw.Watch(args[:1], reload); err != nil {
				return err
			}
			fw.Start()
			fmt.Fprintf(w, "watching %s\n", args[0])
			<-ctx.Done()
			return nil
		},
	}
}

// describe renders a surface tree one node per line.
func describe(w io.Writer, root surface.Surface) {
	var walk func(s surface.Surface, depth int)
	walk = func(s surface.Surface, depth int) {
		fmt.Fprintf(w, "%s#%d %s\n", strings.Repeat("  ", depth), surface.ID(s), surface.Name(s))
		for _, ch := range surface.Children(s) {
			walk(ch, depth+1)
		}
	}
	walk(root, 0)
}
