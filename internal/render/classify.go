// Package render implements the renderer's ray classification policy and the distributed
// quiescence protocol (RenderingSet), grounded directly on spec.md §4.8/§4.9 — the teacher
// traced one ray to completion per pixel in a single process and never needed either of
// these, so both are new code in the teacher's idiom rather than adaptations of a teacher
// file.
package render

import "github.com/mwindels/galaxy/internal/raylist"

// Classify assigns a post-intersection disposition to one ray, per the {primary,shadow,ao}
// x {opaque,surface,boundary,timeout} matrix in SPEC_FULL.md §4.8. reverseLighting flips
// the meaning of blocked/unblocked secondary rays, per spec.md §4.8's "reverse lighting"
// build-time variant.
func Classify(rayType raylist.Type, term raylist.Termination, reverseLighting bool) raylist.Class {
	switch rayType {
	case raylist.Primary:
		switch term {
		case raylist.TermOpaque:
			return raylist.ClassTerminated
		case raylist.TermSurface:
			return raylist.ClassKeep
		case raylist.TermBoundary:
			return raylist.ClassBoundary
		case raylist.TermTimeout:
			return raylist.ClassTerminated
		}
	case raylist.Shadow:
		switch term {
		case raylist.TermOpaque, raylist.TermSurface:
			if reverseLighting {
				return raylist.ClassTerminated
			}
			return raylist.ClassDrop
		case raylist.TermBoundary:
			return raylist.ClassBoundary
		}
		// TermTimeout is unreachable for shadow rays: a shadow ray that reaches its
		// target without hitting anything is resolved as a hit, not a timeout.
	case raylist.AO:
		switch term {
		case raylist.TermOpaque, raylist.TermSurface:
			if reverseLighting {
				return raylist.ClassTerminated
			}
			return raylist.ClassDrop
		case raylist.TermBoundary:
			return raylist.ClassBoundary
		case raylist.TermTimeout:
			if reverseLighting {
				return raylist.ClassDrop
			}
			return raylist.ClassTerminated
		}
	}
	return raylist.ClassDrop
}
