package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/tinycam/internal/camera"
)

// controlsFile is the on-disk layout of a controls file:
//
//	[[control]]
//	id = 0x00980900
//	value = 128
//
//	[controls]
//	exposure_auto = 1
type controlsFile struct {
	Control  []camera.ControlValue `toml:"control"`
	Controls map[string]int64      `toml:"controls"`
}

// LoadControls reads a controls file. Entries from [[control]] come first
// in file order, followed by [controls] entries sorted by name.
func LoadControls(path string) ([]camera.ControlValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseControls(data)
}

// ParseControls parses controls file contents.
func ParseControls(data []byte) ([]camera.ControlValue, error) {
	var f controlsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse controls: %w", err)
	}

	out := make([]camera.ControlValue, 0, len(f.Control)+len(f.Controls))
	for i, cv := range f.Control {
		if cv.ID == 0 && cv.Name == "" {
			return nil, fmt.Errorf("control entry %d has neither id nor name", i+1)
		}
		out = append(out, cv)
	}

	names := make([]string, 0, len(f.Controls))
	for name := range f.Controls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := f.Controls[name]
		if v < -1<<31 || v > 1<<31-1 {
			return nil, fmt.Errorf("control %s value %d out of range", name, v)
		}
		out = append(out, camera.ControlValue{Name: name, Value: int32(v)})
	}
	return out, nil
}
