// Package preview implements the optional live-display window: an SDL2 surface that mirrors
// a process's internal/pixel.Framebuffer at a fixed refresh rate, for interactive
// observation of a render in progress. Grounded on the teacher's shared/screen and
// shared/input packages (window setup, the FPS/MsPerFrame pacing
// constants); camera control itself belongs to the CLI that drives the master rank, not to
// this viewer, so only the quit/escape handling from shared/input survives here.
package preview

import (
	"image"

	"github.com/mwindels/galaxy/internal/pixel"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// FPS and MsPerFrame set the display's refresh pacing, carried over from the teacher's
// shared/screen constants unchanged.
const (
	FPS        uint32 = 30
	MsPerFrame uint32 = 1000 / FPS
)

// Window wraps an SDL2 window and surface sized to a framebuffer's dimensions.
type Window struct {
	window  *sdl.Window
	surface *sdl.Surface
}

// Open starts SDL2 and creates a window of the given title and dimensions, following the
// teacher's screen.StartScreen.
func Open(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "preview: sdl.Init")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "preview: creating window")
	}

	surface, err := window.GetSurface()
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, errors.Wrap(err, "preview: getting window surface")
	}

	return &Window{window: window, surface: surface}, nil
}

// Close destroys the window and shuts down SDL2, following screen.StopScreen.
func (w *Window) Close() {
	w.window.Destroy()
	sdl.Quit()
}

// Show copies a framebuffer's current accumulated image into the window's surface and
// presents it.
func (w *Window) Show(fb *pixel.Framebuffer) error {
	return w.ShowImage(fb.Image())
}

// ShowImage copies an arbitrary decoded image into the window's surface and presents it, for
// clients that only ever see a render's output as a file (e.g. cmd/galaxy-preview polling a
// PNG another process wrote) rather than holding a live Framebuffer themselves.
func (w *Window) ShowImage(img image.Image) error {
	bounds := img.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if err := w.surface.Set(x, y, sdl.Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}); err != nil {
				return errors.Wrap(err, "preview: setting pixel")
			}
		}
	}
	return w.window.UpdateSurface()
}

// PollQuit drains the SDL event queue and reports whether the user asked to quit (escape
// key or window-close), following the quit handling in the teacher's input.HandleInputs.
func PollQuit() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				return true
			}
		}
	}
	return false
}
