package x11

import (
	"fmt"
	"image"
	"log"
	"os"

	"github.com/jezek/xgb/xproto"

	"deskrec/pkg/platform"
)

// Screens captures window contents with the core GetImage request.
type Screens struct {
	client *Client
}

// NewScreens connects a screenshot provider.
func NewScreens() (*Screens, error) {
	client, err := NewClient()
	if err != nil {
		return nil, err
	}
	return &Screens{client: client}, nil
}

// Capture images each requested window drawable. Windows the server
// cannot image (unmapped, zero-sized, destroyed) are skipped; if none
// could be imaged the error wraps platform.ErrCaptureUnavailable.
func (s *Screens) Capture(windows []platform.Window) (map[string]image.Image, error) {
	frames := make(map[string]image.Image, len(windows))
	var lastErr error

	for _, w := range windows {
		img, err := s.captureOne(w)
		if err != nil {
			log.Printf("X11 capture of %s failed: %v", w.App, err)
			lastErr = err
			continue
		}
		frames[w.ID] = img
	}

	if len(frames) == 0 && len(windows) > 0 {
		return frames, fmt.Errorf("%w: %v", platform.ErrCaptureUnavailable, lastErr)
	}
	return frames, nil
}

func (s *Screens) captureOne(w platform.Window) (image.Image, error) {
	id, err := parseWindowID(w.ID)
	if err != nil {
		return nil, err
	}

	geom, err := xproto.GetGeometry(s.client.conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return nil, fmt.Errorf("geometry query failed: %v", err)
	}
	if geom.Width == 0 || geom.Height == 0 {
		return nil, fmt.Errorf("window has zero size")
	}

	reply, err := xproto.GetImage(s.client.conn, xproto.ImageFormatZPixmap,
		xproto.Drawable(id), 0, 0, geom.Width, geom.Height, 0xffffffff).Reply()
	if err != nil {
		// unmapped and obscured windows fail here
		return nil, fmt.Errorf("GetImage failed: %v", err)
	}
	if reply.Depth != 24 && reply.Depth != 32 {
		return nil, fmt.Errorf("unsupported pixmap depth %d", reply.Depth)
	}

	return decodeZPixmap(reply.Data, int(geom.Width), int(geom.Height)), nil
}

// decodeZPixmap converts the server's 32-bit BGRX rows into an RGBA
// image.
func decodeZPixmap(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height
	if len(data) < n*4 {
		n = len(data) / 4
	}
	for i := 0; i < n; i++ {
		src := i * 4
		dst := i * 4
		img.Pix[dst+0] = data[src+2]
		img.Pix[dst+1] = data[src+1]
		img.Pix[dst+2] = data[src+0]
		img.Pix[dst+3] = 0xff
	}
	return img
}

// IsAvailable checks that an X display is configured.
func (s *Screens) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

// Close disconnects from the X server.
func (s *Screens) Close() error {
	s.client.Close()
	return nil
}
