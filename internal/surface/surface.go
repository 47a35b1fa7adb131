// Package surface defines the physical key surface the bridge drives and renders
// key faces onto it.
//
// Concrete devices live in subpackages: virtual (in-memory) and term (a Bubble Tea
// terminal deck).
package surface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrDeviceNotFound is matched by DeviceNotFoundError.
var ErrDeviceNotFound = errors.New("no visual-capable device found")

// DeviceNotFoundError reports a discovery that turned up no usable device.
type DeviceNotFoundError struct {
	// Discovered counts devices found, visual or not.
	Discovered int
}

func (e DeviceNotFoundError) Error() string {
	return fmt.Sprintf("%s (%d discovered)", ErrDeviceNotFound, e.Discovered)
}

func (e DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// DeviceInfo identifies a device for logging.
type DeviceInfo struct {
	Type     string
	Serial   string
	Firmware string
	Keys     int
	Columns  int
}

// KeyCallback receives key transitions in the order the hardware reports them.
type KeyCallback func(dev Surface, index int, pressed bool)

// NativeImage is a key image in the device's own pixel format.
type NativeImage []byte

// Surface is one opened or openable key device.
//
// Apart from SetKeyCallback, methods are not safe for concurrent use; the bridge
// only calls them from its serialized control path.
type Surface interface {
	Info() DeviceInfo
	// Visual reports whether the device has per-key displays.
	Visual() bool
	// KeyImageSize is the per-key canvas size in pixels.
	KeyImageSize() image.Point

	Open() error
	Reset() error
	Close() error

	SetBrightness(percent int) error
	// SetKeyCallback installs the single event sink, replacing any previous one.
	SetKeyCallback(cb KeyCallback)

	CreateKeyImage(background color.Color) draw.Image
	ConvertToNative(img image.Image) (NativeImage, error)
	SetKeyImage(index int, img NativeImage) error
}

// Discoverer enumerates attached devices.
type Discoverer interface {
	Discover(ctx context.Context) ([]Surface, error)
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(ctx context.Context) ([]Surface, error)

// Discover calls f.
func (f DiscovererFunc) Discover(ctx context.Context) ([]Surface, error) {
	return f(ctx)
}

// FirstVisual returns the first visual-capable device d reports.
func FirstVisual(ctx context.Context, d Discoverer) (Surface, error) {
	devices, err := d.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering devices: %w", err)
	}
	for _, dev := range devices {
		if dev != nil && dev.Visual() {
			return dev, nil
		}
	}
	return nil, DeviceNotFoundError{Discovered: len(devices)}
}
