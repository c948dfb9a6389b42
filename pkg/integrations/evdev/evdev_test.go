package evdev

import (
	"encoding/binary"
	"strings"
	"testing"

	"deskrec/pkg/platform"
)

const sampleDevices = `I: Bus=0019 Vendor=0000 Product=0001 Version=0000
N: Name="Power Button"
P: Phys=PNP0C0C/button/input0
H: Handlers=kbd event0
B: PROP=0
B: EV=3

I: Bus=0011 Vendor=0001 Product=0001 Version=ab41
N: Name="AT Translated Set 2 keyboard"
P: Phys=isa0060/serio0/input0
H: Handlers=sysrq kbd event3 leds
B: PROP=0
B: EV=120013

I: Bus=0003 Vendor=046d Product=c52b Version=0111
N: Name="Logitech M510"
P: Phys=usb-0000:00:14.0-2/input2
H: Handlers=mouse0 event5
B: PROP=0
B: EV=17

I: Bus=0019 Vendor=0000 Product=0005 Version=0000
N: Name="Lid Switch"
P: Phys=PNP0C0D/button/input0
H: Handlers=event1
B: EV=21
`

func TestParseDevices(t *testing.T) {
	devices, err := parseDevices(strings.NewReader(sampleDevices))
	if err != nil {
		t.Fatalf("parseDevices() error: %v", err)
	}

	// power button, keyboard and mouse have kbd/mouse handlers; the
	// lid switch does not
	if len(devices) != 3 {
		t.Fatalf("parseDevices() found %d devices, want 3", len(devices))
	}

	want := map[string]string{
		"Power Button":                 "event0",
		"AT Translated Set 2 keyboard": "event3",
		"Logitech M510":                "event5",
	}
	for _, dev := range devices {
		handler, ok := want[dev.name]
		if !ok {
			t.Errorf("unexpected device %q", dev.name)
			continue
		}
		if dev.handler != handler {
			t.Errorf("device %q handler = %s, want %s", dev.name, dev.handler, handler)
		}
	}
}

func TestParseDevicesEmpty(t *testing.T) {
	devices, err := parseDevices(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseDevices() error: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("parseDevices(empty) found %d devices, want 0", len(devices))
	}
}

func TestEventHandler(t *testing.T) {
	tests := []struct {
		handlers string
		want     string
	}{
		{"sysrq kbd event3 leds", "event3"},
		{"mouse0 event5", "event5"},
		{"js0", ""},
	}
	for _, tt := range tests {
		if got := eventHandler(tt.handlers); got != tt.want {
			t.Errorf("eventHandler(%q) = %q, want %q", tt.handlers, got, tt.want)
		}
	}
}

// frame builds one little-endian input_event for decoding tests.
func frame(typ, code uint16, value int32) []byte {
	buf := make([]byte, frameSize)
	binary.LittleEndian.PutUint16(buf[16:18], typ)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	return buf
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name       string
		typ, code  uint16
		value      int32
		wantKind   platform.EventKind
		wantCode   uint16
		wantButton uint16
		wantDelta  float64
		wantNil    bool
	}{
		{name: "key down", typ: evKey, code: 30, value: 1, wantKind: platform.KeyDown, wantCode: 30},
		{name: "key up", typ: evKey, code: 30, value: 0, wantKind: platform.KeyUp, wantCode: 30},
		{name: "key repeat dropped", typ: evKey, code: 30, value: 2, wantNil: true},
		{name: "left button", typ: evKey, code: btnMouse, value: 1, wantKind: platform.ButtonDown, wantButton: 1},
		{name: "right button", typ: evKey, code: btnRight, value: 1, wantKind: platform.ButtonDown, wantButton: 3},
		{name: "middle button up", typ: evKey, code: btnMiddle, value: 0, wantKind: platform.ButtonUp, wantButton: 2},
		{name: "wheel up", typ: evRel, code: relWheel, value: 1, wantKind: platform.Scroll, wantDelta: 1.0},
		{name: "wheel down", typ: evRel, code: relWheel, value: -1, wantKind: platform.Scroll, wantDelta: -1.0},
		{name: "horizontal wheel", typ: evRel, code: relHWheel, value: 2, wantKind: platform.Scroll, wantDelta: 2.0},
		{name: "pointer motion dropped", typ: evRel, code: 0x00, value: 5, wantNil: true},
		{name: "sync dropped", typ: 0x00, code: 0, value: 0, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decodeFrame(frame(tt.typ, tt.code, tt.value))
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("decodeFrame() = %+v, want nil", ev)
				}
				return
			}
			if ev == nil {
				t.Fatal("decodeFrame() returned nil")
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", ev.Kind, tt.wantKind)
			}
			if ev.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", ev.Code, tt.wantCode)
			}
			if ev.Button != tt.wantButton {
				t.Errorf("Button = %d, want %d", ev.Button, tt.wantButton)
			}
			if ev.Delta != tt.wantDelta {
				t.Errorf("Delta = %v, want %v", ev.Delta, tt.wantDelta)
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	s := NewSource()
	t.Logf("evdev available: %v", s.IsAvailable())
}
