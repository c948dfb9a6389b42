package x11

import (
	"context"
	"fmt"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/record"
	"github.com/jezek/xgb/xproto"

	"deskrec/pkg/platform"
)

// X11 wheel button numbers. The server reports wheel notches as button
// presses on 4-7; they become scroll steps, never button events.
const (
	wheelUp    = 4
	wheelDown  = 5
	wheelLeft  = 6
	wheelRight = 7
)

// Core protocol events are fixed 32-byte frames on the wire.
const coreEventSize = 32

// Input taps key and button events of every client through the RECORD
// extension. Intercepted events arrive regardless of which window has
// focus, which is exactly what the recorder needs; window attribution
// happens downstream.
type Input struct{}

// NewInput returns the RECORD-based raw event source.
func NewInput() *Input {
	return &Input{}
}

// Stream registers a record context covering core key and button events
// for all clients and delivers the intercepted events until ctx is
// cancelled. RECORD floods the enabling connection with reply data, so
// the context is controlled on one connection and drained on a second.
// A dead tap is reported wrapping platform.ErrInputSource.
func (in *Input) Stream(ctx context.Context, emit func(platform.InputEvent) error) error {
	ctrl, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("%w: failed to connect to X server: %v", platform.ErrInputSource, err)
	}
	defer ctrl.Close()
	if err := record.Init(ctrl); err != nil {
		return fmt.Errorf("%w: RECORD extension unavailable: %v", platform.ErrInputSource, err)
	}

	data, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("%w: failed to connect to X server: %v", platform.ErrInputSource, err)
	}
	defer data.Close()
	if err := record.Init(data); err != nil {
		return fmt.Errorf("%w: RECORD extension unavailable: %v", platform.ErrInputSource, err)
	}

	rctx, err := record.NewContextId(ctrl)
	if err != nil {
		return fmt.Errorf("%w: failed to allocate record context: %v", platform.ErrInputSource, err)
	}
	ranges := []record.Range{{
		DeviceEvents: record.Range8{First: xproto.KeyPress, Last: xproto.ButtonRelease},
	}}
	specs := []record.ClientSpec{record.ClientSpec(record.CsAllClients)}
	err = record.CreateContextChecked(ctrl, rctx, record.ElementHeader(0), 1, 1, specs, ranges).Check()
	if err != nil {
		return fmt.Errorf("%w: failed to create record context: %v", platform.ErrInputSource, err)
	}
	defer record.FreeContext(ctrl, rctx)

	// Reply blocks inside the data connection; closing it is the only way
	// to interrupt the tap, so cancellation is a deliberate close.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			record.DisableContext(ctrl, rctx)
			data.Close()
		case <-done:
		}
	}()

	cookie := record.EnableContext(data, rctx)
	for {
		reply, err := cookie.Reply()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: record tap closed: %v", platform.ErrInputSource, err)
		}
		if reply.Category != 0 { // only FromServer carries device events
			continue
		}

		buf := reply.Data
		for len(buf) >= coreEventSize {
			frame := buf[:coreEventSize]
			buf = buf[coreEventSize:]

			out := decodeCoreEvent(frame)
			if out == nil {
				continue
			}
			out.Time = time.Now()
			if err := emit(*out); err != nil {
				return err
			}
		}
	}
}

// decodeCoreEvent maps one intercepted 32-byte core protocol event to an
// input sample. Events other than key and button transitions return nil.
// Root coordinates ride along in the frame, so button events carry the
// pointer position for free.
func decodeCoreEvent(frame []byte) *platform.InputEvent {
	if len(frame) < coreEventSize {
		return nil
	}
	code := frame[0] &^ 0x80 // high bit marks synthetic events
	detail := uint16(frame[1])

	var out *platform.InputEvent
	switch code {
	case xproto.KeyPress:
		out = &platform.InputEvent{Kind: platform.KeyDown, Code: detail}
	case xproto.KeyRelease:
		out = &platform.InputEvent{Kind: platform.KeyUp, Code: detail}
	case xproto.ButtonPress:
		out = mapButton(detail, true)
	case xproto.ButtonRelease:
		out = mapButton(detail, false)
	default:
		return nil
	}
	if out == nil {
		return nil
	}

	if out.Kind == platform.ButtonDown || out.Kind == platform.ButtonUp {
		out.X = int(int16(xgb.Get16(frame[20:])))
		out.Y = int(int16(xgb.Get16(frame[22:])))
	}
	return out
}

// mapButton maps a raw button press to a button or scroll event. Wheel
// notch releases are dropped so one notch emits exactly one sample.
func mapButton(button uint16, press bool) *platform.InputEvent {
	switch button {
	case wheelUp, wheelDown, wheelLeft, wheelRight:
		if !press {
			return nil
		}
		delta := 1.0
		if button == wheelDown || button == wheelLeft {
			delta = -1.0
		}
		return &platform.InputEvent{Kind: platform.Scroll, Delta: delta}
	}

	ev := &platform.InputEvent{Kind: platform.ButtonDown, Button: button}
	if !press {
		ev.Kind = platform.ButtonUp
	}
	return ev
}
