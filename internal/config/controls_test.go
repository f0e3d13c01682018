package config

import (
	"reflect"
	"testing"

	"github.com/smazurov/tinycam/internal/camera"
)

func TestParseControls(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []camera.ControlValue
		wantErr bool
	}{
		{
			name: "by id and by name",
			input: `
[[control]]
id = 0x00980900
value = 128

[[control]]
name = "contrast"
value = 32

[controls]
saturation = 64
exposure_auto = 1
`,
			want: []camera.ControlValue{
				{ID: 0x00980900, Value: 128},
				{Name: "contrast", Value: 32},
				{Name: "exposure_auto", Value: 1},
				{Name: "saturation", Value: 64},
			},
		},
		{
			name:  "empty file",
			input: "",
			want:  []camera.ControlValue{},
		},
		{
			name:    "entry without id or name",
			input:   "[[control]]\nvalue = 3\n",
			wantErr: true,
		},
		{
			name:    "value out of int32 range",
			input:   "[controls]\ngain = 4294967296\n",
			wantErr: true,
		},
		{
			name:    "invalid toml",
			input:   "[[control]\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseControls([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseControls() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseControls() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseControls() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadControlsMissingFile(t *testing.T) {
	if _, err := LoadControls("/nonexistent/controls.toml"); err == nil {
		t.Fatal("LoadControls() should fail for a missing file")
	}
}
