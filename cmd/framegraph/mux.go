package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/zsiec/framegraph/avi"
	"github.com/zsiec/framegraph/core"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
)

// coreAudioSource adapts a Core-resolved audio node into avi.Source,
// interleaving planar frame data on demand and standing in a fixed
// 1x1 black frame for the video track every AVI file requires.
type coreAudioSource struct {
	core       *core.Core
	n          *node.Node
	ai         node.AudioInfo
	blockAlign int
	bps        int
	channels   int
}

func newCoreAudioSource(c *core.Core, n *node.Node) *coreAudioSource {
	ai := n.AudioInfo()
	bps := ai.Format.BytesPerSample()
	channels := ai.Channels.NumChannels()
	return &coreAudioSource{
		core: c, n: n, ai: ai,
		bps: bps, channels: channels, blockAlign: bps * channels,
	}
}

func (s *coreAudioSource) VideoFrameCount() int {
	n := int(s.ai.NumFrames())
	if n < 1 {
		n = 1
	}
	return n
}

func (s *coreAudioSource) ReadVideoFrame(i int, dst []byte) (int, error) {
	return len(dst), nil // silent 1x1 placeholder frame, samples untouched (zero)
}

func (s *coreAudioSource) AudioSampleCount() int64 { return s.ai.NumSamples }

func (s *coreAudioSource) ReadAudioSamples(start, count int64, dst []byte) (int, error) {
	remaining := count
	pos := start
	written := int64(0)
	for remaining > 0 {
		frameIdx := int(pos / node.AudioFrameSamples)
		f, err := s.core.GetFrame(s.n, frameIdx)
		if err != nil {
			return int(written) * s.blockAlign, err
		}
		frameStart := int64(frameIdx) * node.AudioFrameSamples
		offsetInFrame := pos - frameStart
		available := int64(f.NumSamples()) - offsetInFrame
		take := remaining
		if available < take {
			take = available
		}
		if take <= 0 {
			f.Release()
			break
		}
		for ch := 0; ch < s.channels; ch++ {
			chBuf := f.ReadChannel(ch)
			for i := int64(0); i < take; i++ {
				srcOff := (offsetInFrame + i) * int64(s.bps)
				dstOff := (written+i)*int64(s.blockAlign) + int64(ch*s.bps)
				copy(dst[dstOff:dstOff+int64(s.bps)], chBuf[srcOff:srcOff+int64(s.bps)])
			}
		}
		f.Release()
		pos += take
		written += take
		remaining -= take
	}
	return int(written) * s.blockAlign, nil
}

func newMuxCommand(loadEngineConfig func() (Config, error)) *cobra.Command {
	var length int64
	var gain float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "mux",
		Short: "Mux the demo audio graph's output into an AVI v2 container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			cfg, err := loadEngineConfig()
			if err != nil {
				return err
			}
			c, err := newEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			outNode, err := buildDemoGraph(c, length, gain)
			if err != nil {
				return err
			}
			src := newCoreAudioSource(c, outNode)

			ai := outNode.AudioInfo()
			afmt := avi.AudioFormat{
				Channels:      src.channels,
				SampleRate:    ai.SampleRate,
				BitsPerSample: ai.Format.BitsPerSample,
				Float:         ai.Format.SampleType == frame.Float,
				ChannelMask:   uint32(ai.Channels),
			}
			vfmt := avi.VideoFormat{FourCC: "DIB ", Width: 1, Height: 1, BitsPerPixel: 24, FPSNum: uint32(ai.SampleRate), FPSDen: uint32(node.AudioFrameSamples)}

			m, err := avi.New(vfmt, afmt, src, avi.Options{
				VidFcc:        cfg.Mux.VidFcc,
				NoInterleave:  cfg.Mux.NoInterleave,
				SmallSegments: cfg.Mux.SmallSegments,
			})
			if err != nil {
				return fmt.Errorf("mux: %w", err)
			}

			lock := flock.New(outPath + ".lock")
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("lock output path: %w", err)
			}
			if !ok {
				return fmt.Errorf("output path %s is locked by another process", outPath)
			}
			defer func() {
				_ = lock.Unlock()
				_ = os.Remove(outPath + ".lock")
			}()

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()

			buf := make([]byte, 1<<20)
			var offset int64
			for offset < m.Size() {
				n, err := m.ReadMedia(offset, buf)
				if err != nil {
					return fmt.Errorf("mux: %w", err)
				}
				if n == 0 {
					break
				}
				if _, err := f.Write(buf[:n]); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				offset += int64(n)
			}

			fmt.Printf("wrote %s (%s)\n", outPath, humanize.Bytes(uint64(m.Size())))
			return nil
		},
	}
	cmd.Flags().Int64Var(&length, "length", node.AudioFrameSamples*8, "sample count for the generated demo clip")
	cmd.Flags().Float64Var(&gain, "gain", 0.5, "gain multiplier applied by the demo graph's AudioGain stage")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output .avi path")
	return cmd
}
