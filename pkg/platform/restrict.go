package platform

import "image"

// Restrict wraps a window provider so that windows rejected by allow are
// reported as nil, exactly as if no window were focused. Recording code
// only ever sees a restricted provider, so unselected windows never enter
// the event log. A nil allow returns p unchanged.
func Restrict(p WindowProvider, allow func(Window) bool) WindowProvider {
	if allow == nil {
		return p
	}
	return &restrictedWindows{p: p, allow: allow}
}

type restrictedWindows struct {
	p     WindowProvider
	allow func(Window) bool
}

func (r *restrictedWindows) ActiveWindow() (*Window, error) {
	w, err := r.p.ActiveWindow()
	if err != nil || w == nil {
		return w, err
	}
	if !r.allow(*w) {
		return nil, nil
	}
	return w, nil
}

func (r *restrictedWindows) IsAvailable() bool     { return r.p.IsAvailable() }
func (r *restrictedWindows) DisplayServer() string { return r.p.DisplayServer() }
func (r *restrictedWindows) Close() error          { return r.p.Close() }

// RestrictScreens wraps a screenshot provider so that windows rejected by
// allow are dropped from every capture request before it reaches the
// backend. This holds the privacy boundary even against a caller that
// passes an unfiltered window set. A nil allow returns s unchanged.
func RestrictScreens(s ScreenshotProvider, allow func(Window) bool) ScreenshotProvider {
	if allow == nil {
		return s
	}
	return &restrictedScreens{s: s, allow: allow}
}

type restrictedScreens struct {
	s     ScreenshotProvider
	allow func(Window) bool
}

func (r *restrictedScreens) Capture(windows []Window) (map[string]image.Image, error) {
	allowed := make([]Window, 0, len(windows))
	for _, w := range windows {
		if r.allow(w) {
			allowed = append(allowed, w)
		}
	}
	if len(allowed) == 0 {
		return map[string]image.Image{}, nil
	}
	return r.s.Capture(allowed)
}

func (r *restrictedScreens) IsAvailable() bool { return r.s.IsAvailable() }
func (r *restrictedScreens) Close() error      { return r.s.Close() }
