package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Faultbox/modelboard/internal/engine/camera"
	"github.com/Faultbox/modelboard/internal/viewer"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <locator> [more files...]",
		Short: "Resolve, parse and frame a model, then print what was found",
		Long: `Inspect loads a model the same way the viewer does and prints the
resource map, the scene nodes, the framed bounds and the camera home view.

The locator may be a local path, an http(s) or file URL, a data URI or a zip
archive. Several paths are loaded together as one file set, e.g.
  modelboard inspect chair.obj chair.mtl wood.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := locatorFor(args)
			if err != nil {
				return err
			}
			opts, err := sessionOptions(cfg)
			if err != nil {
				return err
			}
			s := viewer.New(opts)
			defer s.Close()

			res, err := s.Load(cmd.Context(), loc)
			if err != nil {
				return err
			}
			home, _ := s.Home()
			printInspect(cmd.OutOrStdout(), res, s.Root(), home)
			return nil
		},
	}
}

func printInspect(w io.Writer, res *viewer.LoadResult, root *scene.Node, home camera.Snapshot) {
	fmt.Fprintln(w, "Model")
	fmt.Fprintln(w, "=====")
	fmt.Fprintf(w, "Main:    %s\n", res.Main)
	fmt.Fprintf(w, "Format:  %s\n", res.Format)
	fmt.Fprintf(w, "Bytes:   %d\n", res.Bytes)
	fmt.Fprintf(w, "Elapsed: %s\n\n", res.Elapsed)

	fmt.Fprintf(w, "Resources (%d):\n", len(res.Files))
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}

	meshes := root.MeshNodes()
	triangles := 0
	for _, n := range meshes {
		triangles += n.Mesh.TriangleCount()
	}
	fmt.Fprintf(w, "\nMeshes (%d, %d triangles):\n", len(meshes), triangles)
	for _, n := range meshes {
		mat := "none"
		if n.Material != nil {
			mat = fmt.Sprintf("%s %s", n.Material.Name, n.Material.BaseColor.Hex())
			if n.Material.TextureRef != "" {
				mat += " texture=" + n.Material.TextureRef
			}
		}
		fmt.Fprintf(w, "  %-32s %6d tris  %s\n", n.Path(), n.Mesh.TriangleCount(), mat)
	}

	fit := res.Fit
	fmt.Fprintln(w, "\nBounds:")
	if fit.Degenerate {
		fmt.Fprintln(w, "  degenerate (default view used)")
	} else {
		fmt.Fprintf(w, "  Min:    %s\n", formatVec(fit.Bounds.Min))
		fmt.Fprintf(w, "  Max:    %s\n", formatVec(fit.Bounds.Max))
		fmt.Fprintf(w, "  Size:   %s\n", formatVec(fit.Bounds.Size()))
		fmt.Fprintf(w, "  Center: %s\n", formatVec(fit.Bounds.Center()))
	}
	if fit.Rescaled {
		fmt.Fprintf(w, "  Rescaled by %.6g\n", fit.Scale)
	}

	fmt.Fprintln(w, "\nCamera home:")
	fmt.Fprintf(w, "  Position: %s\n", formatVec(home.Position))
	fmt.Fprintf(w, "  Target:   %s\n", formatVec(home.Target))
	fmt.Fprintf(w, "  Distance: %.6g (min %.6g, max %.6g)\n", home.Distance(), home.MinDistance, home.MaxDistance)
	fmt.Fprintf(w, "  Clip:     near %.6g, far %.6g\n", home.Near, home.Far)

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(res.Warnings))
		for _, msg := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}
}

func formatVec(v math.Vec3) string {
	return fmt.Sprintf("(%.6g, %.6g, %.6g)", v.X, v.Y, v.Z)
}
