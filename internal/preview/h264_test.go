package preview

import (
	"bytes"
	"testing"
)

func annexB(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

var (
	sps   = []byte{0x67, 0x42, 0xE0, 0x1F}
	pps   = []byte{0x68, 0xCE, 0x3C, 0x80}
	idr   = []byte{0x65, 0x88, 0x84}
	slice = []byte{0x41, 0x9A, 0x02}
)

func TestSplitNALs(t *testing.T) {
	au := append(annexB(sps), 0, 0, 1)
	au = append(au, pps...)

	nals := splitNALs(au)
	if len(nals) != 2 {
		t.Fatalf("splitNALs() returned %d units, want 2", len(nals))
	}
	if !bytes.Equal(nals[0], sps) || !bytes.Equal(nals[1], pps) {
		t.Errorf("splitNALs() = %x", nals)
	}
}

func TestParamSetsPrepare(t *testing.T) {
	var ps paramSets

	// Nothing cached yet: the keyframe carries its own parameter sets.
	first := annexB(sps, pps, idr)
	out, key := ps.prepare(first)
	if !key || !bytes.Equal(out, first) {
		t.Fatalf("first keyframe = %x, %v", out, key)
	}

	out, key = ps.prepare(annexB(slice))
	if key || !bytes.Equal(out, annexB(slice)) {
		t.Errorf("delta frame = %x, %v; want unchanged non-key", out, key)
	}

	out, key = ps.prepare(annexB(idr))
	if !key {
		t.Fatal("bare IDR not reported as keyframe")
	}
	if want := annexB(sps, pps, idr); !bytes.Equal(out, want) {
		t.Errorf("bare IDR = %x, want parameter sets prepended %x", out, want)
	}
}

func TestParamSetsIDRWithoutCache(t *testing.T) {
	var ps paramSets
	out, key := ps.prepare(annexB(idr))
	if !key || !bytes.Equal(out, annexB(idr)) {
		t.Errorf("prepare() = %x, %v; want IDR unchanged", out, key)
	}
}
