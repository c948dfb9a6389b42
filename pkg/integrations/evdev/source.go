package evdev

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"deskrec/pkg/platform"
)

// input_event frame layout on 64-bit Linux: two 64-bit time words,
// type, code, value.
const frameSize = 24

// kernel event types and codes
const (
	evKey = 0x01
	evRel = 0x02

	relHWheel = 0x06
	relWheel  = 0x08

	btnMouse   = 0x110 // BTN_LEFT
	btnRight   = 0x111
	btnMiddle  = 0x112
	btnLast    = 0x117
	keyCodeMax = 0x0ff // key codes above this are buttons and switches
)

// Source streams raw input events from /dev/input. Zero value is not
// usable; construct with NewSource.
type Source struct {
	devicesPath string
	devDir      string
}

// NewSource returns an input source over the kernel event devices.
func NewSource() *Source {
	return &Source{
		devicesPath: procDevices,
		devDir:      "/dev/input",
	}
}

// IsAvailable reports whether the device inventory is readable.
func (s *Source) IsAvailable() bool {
	_, err := os.Stat(s.devicesPath)
	return err == nil
}

// Stream opens every keyboard and mouse device and delivers their
// events until ctx is cancelled. Failing to open any device at all, or
// losing every open device mid-stream, is a fatal source failure.
func (s *Source) Stream(ctx context.Context, emit func(platform.InputEvent) error) error {
	devices, err := discoverDevices(s.devicesPath)
	if err != nil {
		return fmt.Errorf("%w: %v", platform.ErrInputSource, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no keyboard or mouse devices found", platform.ErrInputSource)
	}

	events := make(chan platform.InputEvent, 64)
	var wg sync.WaitGroup
	var files []*os.File

	for _, dev := range devices {
		path := filepath.Join(s.devDir, dev.handler)
		f, err := os.Open(path)
		if err != nil {
			log.Printf("Skipping input device %s (%s): %v", dev.handler, dev.name, err)
			continue
		}
		files = append(files, f)
		wg.Add(1)
		go readDevice(f, events, &wg)
	}

	if len(files) == 0 {
		return fmt.Errorf("%w: no input device could be opened (input group membership required)", platform.ErrInputSource)
	}
	log.Printf("Listening on %d input devices", len(files))

	// closing the device files unblocks the readers
	go func() {
		<-ctx.Done()
		for _, f := range files {
			f.Close()
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case ev := <-events:
			if err := emit(ev); err != nil {
				for _, f := range files {
					f.Close()
				}
				return err
			}
		case <-done:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: all input devices closed", platform.ErrInputSource)
		}
	}
}

// readDevice decodes frames from one device until it closes.
func readDevice(f *os.File, events chan<- platform.InputEvent, wg *sync.WaitGroup) {
	defer wg.Done()
	defer f.Close()

	buf := make([]byte, frameSize)
	for {
		if _, err := readFull(f, buf); err != nil {
			return
		}
		if ev := decodeFrame(buf); ev != nil {
			ev.Time = time.Now()
			events <- *ev
		}
	}
}

// readFull reads exactly len(buf) bytes; the kernel delivers whole
// frames but short reads are handled anyway.
func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// decodeFrame maps one input_event frame to a platform event, nil when
// the frame is noise (sync markers, repeats, unknown axes).
func decodeFrame(buf []byte) *platform.InputEvent {
	typ := binary.LittleEndian.Uint16(buf[16:18])
	code := binary.LittleEndian.Uint16(buf[18:20])
	value := int32(binary.LittleEndian.Uint32(buf[20:24]))

	switch typ {
	case evKey:
		if value == 2 {
			// key repeat, the press was already reported
			return nil
		}
		if code >= btnMouse && code <= btnLast {
			kind := platform.ButtonDown
			if value == 0 {
				kind = platform.ButtonUp
			}
			return &platform.InputEvent{Kind: kind, Button: buttonNumber(code)}
		}
		if code <= keyCodeMax {
			kind := platform.KeyDown
			if value == 0 {
				kind = platform.KeyUp
			}
			return &platform.InputEvent{Kind: kind, Code: code}
		}
	case evRel:
		if code == relWheel || code == relHWheel {
			return &platform.InputEvent{Kind: platform.Scroll, Delta: float64(value)}
		}
	}
	return nil
}

// buttonNumber maps BTN_* codes onto the X11 button numbering the rest
// of the pipeline uses (left 1, middle 2, right 3).
func buttonNumber(code uint16) uint16 {
	switch code {
	case btnMouse:
		return 1
	case btnMiddle:
		return 2
	case btnRight:
		return 3
	default:
		return code - btnMouse + 1
	}
}
