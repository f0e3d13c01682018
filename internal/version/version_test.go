package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2025-01-27T10:30:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			name: "unset fields come from build info",
			in:   Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
			want: Info{Version: "v0.3.1", GitCommit: "0123456789ab", BuildDate: "2025-01-27T10:30:00Z", Modified: true},
		},
		{
			name: "ldflags values win",
			in:   Info{Version: "1.2.0", GitCommit: "feedbee", BuildDate: "yesterday"},
			want: Info{Version: "1.2.0", GitCommit: "feedbee", BuildDate: "yesterday", Modified: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			fillFromBuildInfo(&got, bi)
			if got != tt.want {
				t.Errorf("fillFromBuildInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDevelBuildKeepsDev(t *testing.T) {
	info := Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}
	fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("Get() = %+v, missing runtime fields", info)
	}
}
