package render

import (
	"testing"

	"github.com/mwindels/galaxy/internal/raylist"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPrimaryMatrix(t *testing.T) {
	assert.Equal(t, raylist.ClassTerminated, Classify(raylist.Primary, raylist.TermOpaque, false))
	assert.Equal(t, raylist.ClassKeep, Classify(raylist.Primary, raylist.TermSurface, false))
	assert.Equal(t, raylist.ClassBoundary, Classify(raylist.Primary, raylist.TermBoundary, false))
	assert.Equal(t, raylist.ClassTerminated, Classify(raylist.Primary, raylist.TermTimeout, false))
}

func TestClassifyShadowMatrixForwardAndReverse(t *testing.T) {
	assert.Equal(t, raylist.ClassDrop, Classify(raylist.Shadow, raylist.TermOpaque, false))
	assert.Equal(t, raylist.ClassTerminated, Classify(raylist.Shadow, raylist.TermOpaque, true))
	assert.Equal(t, raylist.ClassBoundary, Classify(raylist.Shadow, raylist.TermBoundary, false))
}

func TestClassifyAOMatrixForwardAndReverse(t *testing.T) {
	assert.Equal(t, raylist.ClassDrop, Classify(raylist.AO, raylist.TermSurface, false))
	assert.Equal(t, raylist.ClassTerminated, Classify(raylist.AO, raylist.TermSurface, true))
	assert.Equal(t, raylist.ClassTerminated, Classify(raylist.AO, raylist.TermTimeout, false))
	assert.Equal(t, raylist.ClassDrop, Classify(raylist.AO, raylist.TermTimeout, true))
	assert.Equal(t, raylist.ClassBoundary, Classify(raylist.AO, raylist.TermBoundary, false))
}
