package recorder

import (
	"image"
	"image/color"
	"testing"
)

func frameWithBar(barY int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 128, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 128; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if y >= barY && y < barY+16 {
				c = color.RGBA{A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDeduperSuppressesIdenticalFrames(t *testing.T) {
	d := newDeduper(5)
	img := frameWithBar(10)

	if !d.keep("0x1", img) {
		t.Fatal("first frame should be kept")
	}
	if d.keep("0x1", img) {
		t.Error("identical frame should be suppressed")
	}
	if d.keep("0x1", frameWithBar(10)) {
		t.Error("pixel-identical frame should be suppressed")
	}
}

func TestDeduperTracksWindowsIndependently(t *testing.T) {
	d := newDeduper(5)
	img := frameWithBar(10)

	if !d.keep("0x1", img) {
		t.Fatal("first frame for 0x1 should be kept")
	}
	if !d.keep("0x2", img) {
		t.Error("first frame for 0x2 should be kept even if 0x1 saw the same image")
	}
}

func TestDeduperForgetResetsWindow(t *testing.T) {
	d := newDeduper(5)
	img := frameWithBar(10)

	d.keep("0x1", img)
	d.forget("0x1")
	if !d.keep("0x1", img) {
		t.Error("frame after forget should be kept")
	}
}

func TestDeduperZeroDistanceDisables(t *testing.T) {
	d := newDeduper(0)
	img := frameWithBar(10)

	for i := 0; i < 3; i++ {
		if !d.keep("0x1", img) {
			t.Errorf("keep %d: disabled deduper should keep every frame", i)
		}
	}
}

func TestShrink(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 80))

	out := shrink(img, 100)
	if b := out.Bounds(); b.Dx() != 100 || b.Dy() != 40 {
		t.Errorf("shrink bounds = %dx%d, want 100x40", b.Dx(), b.Dy())
	}

	if out := shrink(img, 0); out != img {
		t.Error("zero max width should pass the image through")
	}
	if out := shrink(img, 200); out != img {
		t.Error("image at the limit should pass through")
	}
	if out := shrink(img, 300); out != img {
		t.Error("image under the limit should pass through")
	}
}
