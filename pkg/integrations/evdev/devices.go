// Package evdev reads raw input straight from the kernel's
// /dev/input/event* character devices. It works on any display server
// (or none) but needs read access to the device nodes, typically via
// the input group.
package evdev

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const procDevices = "/proc/bus/input/devices"

// device is one discovered input device worth listening to.
type device struct {
	name    string
	handler string // "event3"
}

// discoverDevices lists keyboard and mouse devices from the kernel's
// device inventory.
func discoverDevices(path string) ([]device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access input devices: %w", err)
	}
	defer f.Close()
	return parseDevices(f)
}

// parseDevices scans /proc/bus/input/devices blocks. A device is
// selected when its handlers include kbd or mouse and name an event
// node; that covers keyboards and pointing devices and skips sensors,
// lid switches and the like.
func parseDevices(r io.Reader) ([]device, error) {
	var devices []device
	var name, handlers string

	flush := func() {
		if handlers == "" {
			return
		}
		isKbd := strings.Contains(handlers, "kbd")
		isMouse := strings.Contains(handlers, "mouse")
		if !isKbd && !isMouse {
			return
		}
		if ev := eventHandler(handlers); ev != "" {
			devices = append(devices, device{name: name, handler: ev})
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
			name, handlers = "", ""
		case strings.HasPrefix(line, "N: Name="):
			name = strings.Trim(strings.TrimPrefix(line, "N: Name="), "\"")
		case strings.HasPrefix(line, "H: Handlers="):
			handlers = strings.TrimPrefix(line, "H: Handlers=")
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read device list: %w", err)
	}
	return devices, nil
}

// eventHandler picks the eventN token out of a handlers line
func eventHandler(handlers string) string {
	for _, field := range strings.Fields(handlers) {
		if strings.HasPrefix(field, "event") {
			return field
		}
	}
	return ""
}
