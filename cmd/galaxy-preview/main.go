// Command galaxy-preview is an optional live-display client: it opens an SDL2 window and
// repeatedly reloads the output PNG a galaxy-render process writes on the rendering's owner
// rank, giving a human a way to watch a render progress without touching the
// render processes themselves. Grounded on the teacher's master/main.go display loop and
// shared/screen's FPS pacing, adapted from "render and display in the same process" to
// "poll a file another process is writing."
package main

import (
	"image"
	"image/png"
	"os"
	"time"

	"github.com/mwindels/galaxy/internal/preview"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/veandco/go-sdl2/sdl"
)

func main() {
	var path string
	var width, height int

	root := &cobra.Command{
		Use:   "galaxy-preview",
		Short: "watch a galaxy-render output image update live",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(path, width, height)
		},
	}
	root.Flags().StringVar(&path, "image", "", "path to the PNG file being written by galaxy-render")
	root.Flags().IntVar(&width, "width", 512, "window width")
	root.Flags().IntVar(&height, "height", 512, "window height")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("galaxy-preview: fatal error")
	}
}

func run(path string, width, height int) error {
	if path == "" {
		return errors.New("galaxy-preview: --image is required")
	}

	win, err := preview.Open("galaxy-preview", width, height)
	if err != nil {
		return err
	}
	defer win.Close()

	var lastMod time.Time
	for {
		start := sdl.GetTicks()

		if preview.PollQuit() {
			return nil
		}

		if info, err := os.Stat(path); err == nil && info.ModTime().After(lastMod) {
			if img, err := loadPNG(path); err == nil {
				if err := win.ShowImage(img); err != nil {
					logrus.WithError(err).Warn("galaxy-preview: failed to display frame")
				}
				lastMod = info.ModTime()
			}
		}

		elapsed := sdl.GetTicks() - start
		if elapsed < preview.MsPerFrame {
			sdl.Delay(preview.MsPerFrame - elapsed)
		}
	}
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
