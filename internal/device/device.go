// Package device models the physical device state the overlay depends on:
// screen orientation and which camera is facing the subject.
package device

import "fmt"

// Orientation is the screen orientation reported by the device.
type Orientation int

const (
	PortraitUp Orientation = iota
	PortraitDown
	LandscapeLeft
	LandscapeRight
)

var orientationNames = map[Orientation]string{
	PortraitUp:     "portrait_up",
	PortraitDown:   "portrait_down",
	LandscapeLeft:  "landscape_left",
	LandscapeRight: "landscape_right",
}

func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// IsPortrait reports whether o is one of the portrait orientations.
func (o Orientation) IsPortrait() bool {
	return o == PortraitUp || o == PortraitDown
}

// IsLandscape reports whether o is one of the landscape orientations.
func (o Orientation) IsLandscape() bool {
	return o == LandscapeLeft || o == LandscapeRight
}

// ParseOrientation converts a name such as "landscape_left" to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	for o, name := range orientationNames {
		if name == s {
			return o, nil
		}
	}
	return PortraitUp, fmt.Errorf("unknown orientation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Facing identifies which camera is in use.
type Facing int

const (
	Front Facing = iota
	Back
)

func (f Facing) String() string {
	if f == Back {
		return "back"
	}
	return "front"
}

// Toggle returns the other camera.
func (f Facing) Toggle() Facing {
	if f == Front {
		return Back
	}
	return Front
}

// ParseFacing converts "front" or "back" to a Facing.
func ParseFacing(s string) (Facing, error) {
	switch s {
	case "front":
		return Front, nil
	case "back":
		return Back, nil
	}
	return Front, fmt.Errorf("unknown camera facing %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Facing) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Facing) UnmarshalText(text []byte) error {
	parsed, err := ParseFacing(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
