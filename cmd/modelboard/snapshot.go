package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/engine/debug"
	"github.com/Faultbox/modelboard/internal/engine/input"
	"github.com/Faultbox/modelboard/internal/logger"
	"github.com/Faultbox/modelboard/internal/viewer"
)

// maxSettleFrames bounds the damped orbit simulation.
const maxSettleFrames = 600

type snapshotFlags struct {
	output string
	dir    string
	pan    []float64
	orbit  []float64
	zoom   float64
	bounds bool
	pick   []float64
	color  string
}

func newSnapshotCmd() *cobra.Command {
	var f snapshotFlags
	cmd := &cobra.Command{
		Use:   "snapshot <locator> [more files...]",
		Short: "Render a preview frame of a model to PNG",
		Long: `Snapshot loads and frames a model, optionally moves the camera, and
writes the rendered frame as PNG at width*dpr by height*dpr pixels.

Examples:
  modelboard snapshot part.stl -o part.png
  modelboard snapshot scene.glb --orbit 120,0 --zoom 1.5 --bounds
  modelboard snapshot chair.obj --pick 640,360 --color "#d04020" -o red.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "Output PNG path (default: timestamped file in --dir)")
	flags.StringVar(&f.dir, "dir", "snapshots", "Directory for timestamped snapshots")
	flags.Float64SliceVar(&f.pan, "pan", nil, "Pan by dx,dy pixels")
	flags.Float64SliceVar(&f.orbit, "orbit", nil, "Orbit as if dragged by dx,dy pixels")
	flags.Float64Var(&f.zoom, "zoom", 1, "Zoom factor (>1 moves closer)")
	flags.BoolVar(&f.bounds, "bounds", false, "Draw the model bounding box")
	flags.Float64SliceVar(&f.pick, "pick", nil, "Select the node under x,y")
	flags.StringVar(&f.color, "color", "", "Apply this hex color to the picked node")
	return cmd
}

func runSnapshot(cmd *cobra.Command, args []string, f snapshotFlags) error {
	for name, v := range map[string][]float64{"pan": f.pan, "orbit": f.orbit, "pick": f.pick} {
		if v != nil && len(v) != 2 {
			return fmt.Errorf("--%s takes two values, got %d", name, len(v))
		}
	}
	if f.color != "" && f.pick == nil {
		return fmt.Errorf("--color needs --pick")
	}

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

	if _, err := s.Load(cmd.Context(), loc); err != nil {
		return err
	}

	if f.orbit != nil {
		orbit(s, f.orbit[0], f.orbit[1])
	}
	if f.pan != nil {
		s.Pan(f.pan[0], f.pan[1])
	}
	if err := s.Zoom(f.zoom); err != nil {
		return fmt.Errorf("--zoom %v: %w", f.zoom, err)
	}
	if f.pick != nil {
		n := s.SelectAt(f.pick[0], f.pick[1])
		if n == nil {
			logger.Warn("nothing under pick point", zap.Float64s("at", f.pick))
		} else if f.color != "" {
			if err := s.ApplyColor(f.color); err != nil {
				return err
			}
		}
	}

	var img image.Image = s.Capture()
	if f.bounds {
		img = debug.DrawBounds(img, s.Root().WorldBounds(), s.ViewProjection(), color.NRGBA{R: 0, G: 160, B: 255, A: 255}, 1.5)
	}

	path := f.output
	if path == "" {
		path, err = debug.NewScreenshotCapture(f.dir, "snapshot").CaptureFromImage(img)
	} else {
		err = debug.WritePNG(path, img)
	}
	if err != nil {
		return err
	}
	b := img.Bounds()
	logger.Info("snapshot written", zap.String("path", path), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// orbit replays a primary drag from the viewport center and lets the
// damped motion settle.
func orbit(s *viewer.Session, dx, dy float64) {
	w, h, _ := s.Size()
	cx, cy := float64(w)/2, float64(h)/2
	s.Queue(input.Event{Type: input.EventPointerDown, X: cx, Y: cy, Button: input.ButtonPrimary})
	s.Queue(input.Event{Type: input.EventPointerMove, X: cx + dx, Y: cy + dy})
	s.Queue(input.Event{Type: input.EventPointerUp, X: cx + dx, Y: cy + dy})
	for i := 0; i < maxSettleFrames && s.Step(1.0/60); i++ {
	}
}
