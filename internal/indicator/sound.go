package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/voxhook/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueFileLimit  = 4 * time.Second
)

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

// cue pairs a synthesized fallback with the config field that overrides it.
type cue struct {
	name    string
	file    func(config.IndicatorConfig) string
	samples []int16
}

func tone(hz float64, ms int, volume float64) toneSpec {
	return toneSpec{frequencyHz: hz, duration: time.Duration(ms) * time.Millisecond, volume: volume}
}

var cues = map[cueKind]cue{
	cueStart: {
		name:    "start",
		file:    func(c config.IndicatorConfig) string { return c.SoundStartFile },
		samples: synthesizeCue([]toneSpec{tone(880, 70, 0.18), tone(1175, 70, 0.18)}),
	},
	cueStop: {
		name:    "stop",
		file:    func(c config.IndicatorConfig) string { return c.SoundStopFile },
		samples: synthesizeCue([]toneSpec{tone(620, 120, 0.18)}),
	},
	// rising pair: a hook ran
	cueComplete: {
		name:    "complete",
		file:    func(c config.IndicatorConfig) string { return c.SoundCompleteFile },
		samples: synthesizeCue([]toneSpec{tone(740, 65, 0.18), tone(988, 90, 0.18)}),
	},
	cueCancel: {
		name:    "cancel",
		file:    func(c config.IndicatorConfig) string { return c.SoundCancelFile },
		samples: synthesizeCue([]toneSpec{tone(480, 75, 0.18), tone(360, 90, 0.18)}),
	},
	cueError: {
		name:    "error",
		file:    func(c config.IndicatorConfig) string { return c.SoundErrorFile },
		samples: synthesizeCue([]toneSpec{tone(330, 110, 0.2), tone(330, 110, 0.2)}),
	},
}

func (k cueKind) String() string {
	if c, ok := cues[k]; ok {
		return c.name
	}
	return "unknown"
}

// emitCue prefers a configured sound file and falls back to the synthesized tone.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("emit %s cue: %w", kind, err)
	}
	if path := cuePath(kind, cfg); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playSynthCue(samples)
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cues[kind]
	if !ok {
		return ""
	}
	raw := strings.TrimSpace(c.file(cfg))
	if raw == "" {
		return ""
	}
	return config.ExpandHome(raw)
}

func cueSamples(kind cueKind) []int16 {
	return cues[kind].samples
}

func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	playCtx, cancel := context.WithTimeout(ctx, cueFileLimit)
	defer cancel()

	if err := exec.CommandContext(playCtx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

func playSynthCue(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("voxhook"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	remaining := samples
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("voxhook cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

// synthesizeCue joins tones with a short silence between them.
func synthesizeCue(parts []toneSpec) []int16 {
	var pcm []int16
	gap := make([]int16, samplesForDuration(cueGap))
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

// synthesizeTone renders a sine with a linear attack and release of at most 5ms.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueSampleRate/200)

	pcm := make([]int16, n)
	for i := range pcm {
		edge := min(i, n-i-1)
		envelope := 1.0
		if edge < ramp {
			envelope = float64(edge) / float64(ramp)
		}
		phase := 2 * math.Pi * spec.frequencyHz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * spec.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
