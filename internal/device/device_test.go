package device

import (
	"sync"
	"testing"
)

func TestOrientation_Classification(t *testing.T) {
	tests := []struct {
		orientation Orientation
		portrait    bool
	}{
		{PortraitUp, true},
		{PortraitDown, true},
		{LandscapeLeft, false},
		{LandscapeRight, false},
	}

	for _, tt := range tests {
		t.Run(tt.orientation.String(), func(t *testing.T) {
			if got := tt.orientation.IsPortrait(); got != tt.portrait {
				t.Errorf("IsPortrait() = %v, want %v", got, tt.portrait)
			}
			if got := tt.orientation.IsLandscape(); got == tt.portrait {
				t.Errorf("IsLandscape() = %v, want %v", got, !tt.portrait)
			}
		})
	}
}

func TestParseOrientation(t *testing.T) {
	for o := PortraitUp; o <= LandscapeRight; o++ {
		got, err := ParseOrientation(o.String())
		if err != nil {
			t.Fatalf("ParseOrientation(%q) error = %v", o.String(), err)
		}
		if got != o {
			t.Errorf("ParseOrientation(%q) = %v, want %v", o.String(), got, o)
		}
	}

	if _, err := ParseOrientation("sideways"); err == nil {
		t.Error("expected error for unknown orientation")
	}
}

func TestFacing(t *testing.T) {
	if Front.Toggle() != Back || Back.Toggle() != Front {
		t.Error("Toggle() should switch between front and back")
	}

	var f Facing
	if err := f.UnmarshalText([]byte("back")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if f != Back {
		t.Errorf("UnmarshalText(back) = %v, want back", f)
	}

	if err := f.UnmarshalText([]byte("selfie")); err == nil {
		t.Error("expected error for unknown facing")
	}
}

func TestManualMonitor(t *testing.T) {
	t.Run("reports initial orientation", func(t *testing.T) {
		m := NewManualMonitor(LandscapeLeft)
		if got := m.Current(); got != LandscapeLeft {
			t.Errorf("Current() = %v, want landscape_left", got)
		}
	})

	t.Run("notifies subscribers on change", func(t *testing.T) {
		m := NewManualMonitor(PortraitUp)

		var mu sync.Mutex
		var seen []Orientation
		m.Subscribe(func(o Orientation) {
			mu.Lock()
			seen = append(seen, o)
			mu.Unlock()
		})

		m.Set(LandscapeRight)
		m.Set(LandscapeRight) // unchanged, no event
		m.Set(PortraitUp)

		mu.Lock()
		defer mu.Unlock()
		if len(seen) != 2 || seen[0] != LandscapeRight || seen[1] != PortraitUp {
			t.Errorf("events = %v, want [landscape_right portrait_up]", seen)
		}
	})

	t.Run("unsubscribe stops notifications", func(t *testing.T) {
		m := NewManualMonitor(PortraitUp)

		calls := 0
		unsubscribe := m.Subscribe(func(Orientation) { calls++ })
		unsubscribe()

		m.Set(PortraitDown)
		if calls != 0 {
			t.Errorf("callback called %d times after unsubscribe", calls)
		}
		if m.Current() != PortraitDown {
			t.Errorf("Current() = %v, want portrait_down", m.Current())
		}
	})

	t.Run("subscriber may read current orientation", func(t *testing.T) {
		m := NewManualMonitor(PortraitUp)

		var got Orientation
		m.Subscribe(func(Orientation) { got = m.Current() })
		m.Set(LandscapeLeft)

		if got != LandscapeLeft {
			t.Errorf("Current() inside callback = %v, want landscape_left", got)
		}
	})
}
