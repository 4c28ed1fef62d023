package keypad

import "fmt"

// Screen identifies the active UI screen. Exactly one is active at a time.
type Screen int

const (
	ScreenMetadata Screen = iota
	ScreenSourceSelect
	ScreenSettings
)

// Screens lists every screen in declaration order.
var Screens = []Screen{ScreenMetadata, ScreenSourceSelect, ScreenSettings}

func (s Screen) String() string {
	switch s {
	case ScreenMetadata:
		return "metadata"
	case ScreenSourceSelect:
		return "source"
	case ScreenSettings:
		return "setting"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// MarshalText renders the screen with its wire name.
func (s Screen) MarshalText() ([]byte, error) {
	switch s {
	case ScreenMetadata, ScreenSourceSelect, ScreenSettings:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid screen %d", int(s))
	}
}

// UnmarshalText parses a wire name.
func (s *Screen) UnmarshalText(text []byte) error {
	parsed, err := ParseScreen(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseScreen parses the wire name of a screen.
func ParseScreen(name string) (Screen, error) {
	for _, s := range Screens {
		if s.String() == name {
			return s, nil
		}
	}
	return ScreenMetadata, fmt.Errorf("unknown screen %q", name)
}
