package main

import (
	"fmt"

	"github.com/zsiec/framegraph/core"
	"github.com/zsiec/framegraph/filters"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

// newEngine builds a Core with the built-in "std" filter pack
// registered, ready to invoke.
func newEngine(cfg EngineConfig) (*core.Core, error) {
	c := core.New(core.Options{Threads: cfg.Threads, MaxCacheBytes: cfg.MaxCacheBytes})
	if err := c.RegisterPlugin(filters.NewPlugin()); err != nil {
		return nil, fmt.Errorf("register filters: %w", err)
	}
	return c, nil
}

// buildDemoGraph wires TestAudio -> AudioGain -> AudioReverse, a small
// pipeline that exercises the request protocol across three chained
// filter nodes, and returns its output audio node.
func buildDemoGraph(c *core.Core, length int64, gain float64) (*node.Node, error) {
	src := propmap.New()
	src.SetInt("length", length, propmap.Replace)
	testAudio := c.Invoke("std", "TestAudio", src)
	if testAudio.HasError() {
		msg, _ := testAudio.Error()
		return nil, fmt.Errorf("TestAudio: %s", msg)
	}
	testClip, code := testAudio.AudioNode("clip", 0)
	if code != propmap.ErrNone {
		return nil, fmt.Errorf("TestAudio: no clip output")
	}

	gainArgs := propmap.New()
	gainArgs.SetAudioNode("clip", testClip, propmap.Replace)
	gainArgs.SetFloatArray("gain", []float64{gain})
	gained := c.Invoke("std", "AudioGain", gainArgs)
	if gained.HasError() {
		msg, _ := gained.Error()
		return nil, fmt.Errorf("AudioGain: %s", msg)
	}
	gainedClip, code := gained.AudioNode("clip", 0)
	if code != propmap.ErrNone {
		return nil, fmt.Errorf("AudioGain: no clip output")
	}

	revArgs := propmap.New()
	revArgs.SetAudioNode("clip", gainedClip, propmap.Replace)
	reversed := c.Invoke("std", "AudioReverse", revArgs)
	if reversed.HasError() {
		msg, _ := reversed.Error()
		return nil, fmt.Errorf("AudioReverse: %s", msg)
	}
	outClip, code := reversed.AudioNode("clip", 0)
	if code != propmap.ErrNone {
		return nil, fmt.Errorf("AudioReverse: no clip output")
	}

	an, ok := outClip.(node.AudioNodeRef)
	if !ok {
		return nil, fmt.Errorf("unrecognized audio node reference")
	}
	return an.Node, nil
}
