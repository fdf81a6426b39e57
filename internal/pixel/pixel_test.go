package pixel

import (
	"image"
	"testing"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/stretchr/testify/assert"
)

func TestApplyAccumulatesWithinFrame(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fb.Apply(Sample{X: 1, Y: 2, Color: colour.NewRGB(255, 0, 0), Frame: 1})
	assert.EqualValues(t, 1, fb.Received())
}

func TestApplyDropsStaleFrame(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fb.Apply(Sample{X: 0, Y: 0, Color: colour.NewRGB(255, 255, 255), Frame: 5})
	fb.Apply(Sample{X: 0, Y: 0, Color: colour.NewRGB(0, 0, 0), Frame: 2})
	assert.EqualValues(t, 1, fb.Received())
}

func TestApplyNewerFrameResets(t *testing.T) {
	fb := NewFramebuffer(2, 2)
	fb.Apply(Sample{X: 0, Y: 0, Color: colour.NewRGB(255, 255, 255), Frame: 1})
	fb.Apply(Sample{X: 1, Y: 1, Color: colour.NewRGB(100, 100, 100), Frame: 2})
	assert.EqualValues(t, 1, fb.Received())
}

func TestImageProducesCorrectBounds(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	img := fb.Image()
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}
