// Package filters implements the built-in audio filter pack: source
// generators, splicing/trimming/looping/reversing/gain/mix, and channel
// remapping, all built on the two-phase node/fctx/sched activation
// protocol and registered as a plugin.Plugin.
package filters

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

func depKey(n *node.Node, idx int) fctx.Key {
	return fctx.Key{NodeID: n.ID(), Index: idx, Output: n.Output()}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// audioNode extracts the underlying *node.Node from a propmap element,
// erroring if the reference wasn't produced by this engine's own
// node.AudioNodeRef adapter.
func audioNode(args *propmap.Map, key string, index int) (*node.Node, error) {
	ref, code := args.AudioNode(key, index)
	if code != propmap.ErrNone {
		return nil, fmt.Errorf("%s: %w", key, code)
	}
	an, ok := ref.(node.AudioNodeRef)
	if !ok {
		return nil, fmt.Errorf("%s: unrecognized audio node reference", key)
	}
	return an.Node, nil
}

func optInt(args *propmap.Map, key string, def int64) (int64, bool) {
	v, code := args.Int(key, 0)
	if code != propmap.ErrNone {
		return def, false
	}
	return v, true
}

// isFloatFormat reports whether a channel's samples should be
// interpreted as IEEE-754 float32 rather than a signed integer.
func isFloatFormat(f frame.AudioFormat) bool {
	return f.SampleType == frame.Float
}

// readSample decodes the i'th sample of a channel buffer as a float64,
// dispatching on byte width and sample type.
func readSample(b []byte, i, bps int, isFloat bool) float64 {
	switch bps {
	case 2:
		return float64(int16(binary.LittleEndian.Uint16(b[i*2:])))
	case 4:
		if isFloat {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		}
		return float64(int32(binary.LittleEndian.Uint32(b[i*4:])))
	default:
		return 0
	}
}

// writeSample is the inverse of readSample, saturating on overflow for
// integer formats the way the engine's fixed-point filters are expected
// to.
func writeSample(b []byte, i, bps int, isFloat bool, v float64) {
	switch bps {
	case 2:
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(v)))
	case 4:
		if isFloat {
			binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(float32(v)))
			return
		}
		if v > math.MaxInt32 {
			v = math.MaxInt32
		} else if v < math.MinInt32 {
			v = math.MinInt32
		}
		binary.LittleEndian.PutUint32(b[i*4:], uint32(int32(v)))
	}
}

// segment describes one contiguous run of samples pulled from a single
// source frame, used by the splice/loop family to stitch multiple
// dependency frames into one output frame.
type segment struct {
	clip, frame int
	skip, take  int64
}
