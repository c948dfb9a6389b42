package recorder

import (
	"image"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
)

// shrink scales a frame down to maxWidth preserving the aspect ratio.
// Frames at or under the limit, and a limit of 0, pass through.
func shrink(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
}

// deduper suppresses periodic frames that are perceptually identical to
// the previous kept frame of the same window. Focus-change frames never
// pass through here.
type deduper struct {
	distance int
	hashes   map[string]*goimagehash.ImageHash
}

func newDeduper(distance int) *deduper {
	return &deduper{
		distance: distance,
		hashes:   make(map[string]*goimagehash.ImageHash),
	}
}

// keep reports whether the frame differs enough from the window's last
// kept frame, recording its hash when it does. Hash failures never
// suppress a frame.
func (d *deduper) keep(windowID string, img image.Image) bool {
	if d.distance <= 0 {
		return true
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return true
	}
	if prev, ok := d.hashes[windowID]; ok {
		if dist, err := prev.Distance(h); err == nil && dist <= d.distance {
			return false
		}
	}
	d.hashes[windowID] = h
	return true
}

// forget drops the stored hash for a window, typically when it loses
// focus, so the next periodic frame after it returns is always kept.
func (d *deduper) forget(windowID string) {
	delete(d.hashes, windowID)
}
