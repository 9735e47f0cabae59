package transform

import (
	"fmt"
	"strings"

	"github.com/ayusman/posecam/internal/device"
)

// Family groups devices by how their camera texture behaves on rotation.
type Family int

const (
	// FamilyA devices rotate the camera texture themselves.
	FamilyA Family = iota
	// FamilyB devices need the texture rotated before inference.
	FamilyB
)

func (f Family) String() string {
	if f == FamilyB {
		return "b"
	}
	return "a"
}

// ParseFamily accepts "a"/"android" and "b"/"ios".
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "a", "android":
		return FamilyA, nil
	case "b", "ios":
		return FamilyB, nil
	}
	return FamilyA, fmt.Errorf("unknown platform family %q", s)
}

// PlatformProfile holds every family-dependent rule the transform applies.
type PlatformProfile struct {
	Family Family

	// SwapOutputInLandscape swaps the output rectangle's width and height
	// while the device is in a landscape orientation.
	SwapOutputInLandscape bool

	// MirrorFront and MirrorBack flip x for the respective camera.
	MirrorFront bool
	MirrorBack  bool

	// RotateTexture is set when frames must be rotated before inference.
	RotateTexture bool

	// Aspect is width/height of both the output and preview rectangles in portrait.
	Aspect float64
}

var profiles = map[Family]PlatformProfile{
	FamilyA: {
		Family:                FamilyA,
		SwapOutputInLandscape: false,
		MirrorFront:           true,
		MirrorBack:            true,
		RotateTexture:         false,
		Aspect:                3.0 / 4.0,
	},
	FamilyB: {
		Family:                FamilyB,
		SwapOutputInLandscape: true,
		MirrorFront:           false,
		MirrorBack:            true,
		RotateTexture:         true,
		Aspect:                9.0 / 16.0,
	},
}

// ProfileFor returns the profile for a platform family.
func ProfileFor(f Family) PlatformProfile {
	if p, ok := profiles[f]; ok {
		return p
	}
	return profiles[FamilyA]
}

// Mirrors reports whether x is flipped for the given camera.
func (p PlatformProfile) Mirrors(facing device.Facing) bool {
	if facing == device.Back {
		return p.MirrorBack
	}
	return p.MirrorFront
}

// RectForWidth returns a portrait rectangle of the given width at the profile's aspect.
func (p PlatformProfile) RectForWidth(width float64) Rect {
	return Rect{Width: width, Height: width / p.Aspect}
}

// TextureRotation returns the clockwise rotation, in degrees, to apply to a
// captured frame before inference so the model sees an upright subject.
func TextureRotation(p PlatformProfile, o device.Orientation, facing device.Facing) int {
	if !p.RotateTexture {
		return 0
	}

	switch o {
	case device.PortraitDown:
		return 180
	case device.LandscapeLeft:
		if facing == device.Front {
			return 270
		}
		return 90
	case device.LandscapeRight:
		if facing == device.Front {
			return 90
		}
		return 270
	default:
		return 0
	}
}
