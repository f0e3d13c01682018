package camera

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// ControlValue is a requested control write. Name is used to look the
// control up when ID is zero.
type ControlValue struct {
	ID    uint32 `json:"id,omitempty" toml:"id"`
	Name  string `json:"name,omitempty" toml:"name"`
	Value int32  `json:"value" toml:"value"`
}

func (cv ControlValue) String() string {
	if cv.ID != 0 {
		return fmt.Sprintf("0x%08x=%d", cv.ID, cv.Value)
	}
	return fmt.Sprintf("%s=%d", cv.Name, cv.Value)
}

// ControlKey normalizes a driver control name ("White Balance Temperature,
// Auto") to the form used in files and on the command line
// ("white_balance_temperature_auto").
func ControlKey(name string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			underscore = false
		case sb.Len() > 0 && !underscore:
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

// Controls returns the controls remembered by the last QueryControls,
// ordered by ID.
func (c *Camera) Controls() []v4l2.ControlInfo {
	out := make([]v4l2.ControlInfo, 0, len(c.controls))
	for _, ctrl := range c.controls {
		out = append(out, ctrl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupControl finds a queried control by ID, or by name when id is zero.
func (c *Camera) LookupControl(id uint32, name string) (v4l2.ControlInfo, bool) {
	if id != 0 {
		ctrl, ok := c.controls[id]
		return ctrl, ok
	}
	key := ControlKey(name)
	for _, ctrl := range c.controls {
		if ControlKey(ctrl.Name) == key {
			return ctrl, true
		}
	}
	return v4l2.ControlInfo{}, false
}

// ApplyControl resolves cv against the device controls, querying them
// first if needed, and writes the value.
func (c *Camera) ApplyControl(cv ControlValue) (v4l2.ControlInfo, error) {
	if c.controls == nil {
		if _, err := c.QueryControls(); err != nil {
			return v4l2.ControlInfo{}, err
		}
	}
	ctrl, ok := c.LookupControl(cv.ID, cv.Name)
	if !ok {
		if _, err := c.begin(OpSetControl); err != nil {
			return v4l2.ControlInfo{}, err
		}
		return v4l2.ControlInfo{}, &Error{
			Code:    ErrCodeInvalidControl,
			Op:      OpSetControl,
			State:   c.state,
			Message: "unknown control " + cv.String(),
		}
	}
	return ctrl, c.SetControl(ctrl.ID, cv.Value)
}
