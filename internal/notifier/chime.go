package notifier

import (
	"math"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/rs/zerolog"
)

const (
	chimeSampleRate = 44100
	chimeFreq       = 880.0
	chimeVolume     = 0.25
	chimeDecay      = 18.0
)

// PulseChime plays a two-tone chime on the default PulseAudio sink.
type PulseChime struct {
	logger  zerolog.Logger
	once    sync.Once
	samples []int16
}

func NewPulseChime(logger zerolog.Logger) *PulseChime {
	return &PulseChime{logger: logger}
}

// Play returns immediately; playback runs in its own goroutine.
func (c *PulseChime) Play() {
	c.once.Do(func() {
		first := tone(chimeSampleRate, chimeFreq, 0.12, chimeVolume, chimeDecay)
		second := tone(chimeSampleRate, chimeFreq*1.5, 0.18, chimeVolume, chimeDecay)
		c.samples = append(first, second...)
	})
	go c.play()
}

func (c *PulseChime) play() {
	client, err := pulse.NewClient(pulse.ClientApplicationName("huddlenotify"))
	if err != nil {
		c.logger.Debug().Err(err).Msg("pulse unavailable")
		return
	}
	defer client.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(c.samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, c.samples[pos:])
		pos += n
		return n, nil
	})

	stream, err := client.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(chimeSampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		c.logger.Debug().Err(err).Msg("chime playback failed")
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

// tone renders an interleaved stereo sine with exponential decay.
func tone(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}
