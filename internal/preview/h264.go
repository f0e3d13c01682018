package preview

import "bytes"

// H264 NAL unit types.
const (
	nalIDR = 5
	nalSPS = 7
	nalPPS = 8
)

var startCode = []byte{0, 0, 0, 1}

// splitNALs returns the NAL units of an Annex-B access unit without their
// start codes.
func splitNALs(au []byte) [][]byte {
	var nals [][]byte
	start := -1
	for i := 0; i+2 < len(au); {
		if au[i] == 0 && au[i+1] == 0 && au[i+2] == 1 {
			if start >= 0 {
				end := i
				if end > start && au[end-1] == 0 {
					end--
				}
				nals = append(nals, au[start:end])
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(au) {
		nals = append(nals, au[start:])
	}
	return nals
}

// paramSets remembers the last SPS and PPS seen so keyframes can be made
// self-contained for peers that join mid-stream.
type paramSets struct {
	sps, pps []byte
}

// prepare inspects an access unit. It reports whether the unit is a
// keyframe and returns it with the cached SPS/PPS prepended when the
// keyframe does not carry them in-band.
func (ps *paramSets) prepare(au []byte) ([]byte, bool) {
	var idr, hasSPS, hasPPS bool
	for _, nal := range splitNALs(au) {
		if len(nal) == 0 {
			continue
		}
		switch nal[0] & 0x1F {
		case nalSPS:
			ps.sps = bytes.Clone(nal)
			hasSPS = true
		case nalPPS:
			ps.pps = bytes.Clone(nal)
			hasPPS = true
		case nalIDR:
			idr = true
		}
	}
	if !idr || (hasSPS && hasPPS) || ps.sps == nil || ps.pps == nil {
		return au, idr
	}

	out := make([]byte, 0, len(au)+len(ps.sps)+len(ps.pps)+2*len(startCode))
	out = append(out, startCode...)
	out = append(out, ps.sps...)
	out = append(out, startCode...)
	out = append(out, ps.pps...)
	out = append(out, au...)
	return out, true
}
