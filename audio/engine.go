package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"

	"github.com/robmorgan/pulse/engine/scale"
	"github.com/robmorgan/pulse/logger"
	"github.com/robmorgan/pulse/rhythm"
)

type voice struct {
	start  int
	frames [][2]float64
	gain   float64
}

// Engine mixes scheduled samples into a single beep.Streamer. The number of frames it has streamed is the audio
// clock: Now is origin plus the duration of those frames, so ticks dated against it land on exact sample offsets.
type Engine struct {
	mu sync.Mutex

	rate   beep.SampleRate
	bank   Bank
	origin time.Time
	pos    int
	voices []voice

	log *logrus.Entry
}

// NewEngine creates an engine whose clock reads origin before the first frame is streamed.
func NewEngine(rate beep.SampleRate, bank Bank, origin time.Time) *Engine {
	return &Engine{
		rate:   rate,
		bank:   bank,
		origin: origin,
		log:    logger.GetProjectLogger().WithField("component", "audio"),
	}
}

// SampleRate returns the rate the engine streams at.
func (e *Engine) SampleRate() beep.SampleRate {
	return e.rate
}

// Now returns the time of the next frame to be streamed.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.origin.Add(e.rate.D(e.pos))
}

// Since returns the audio time elapsed since t.
func (e *Engine) Since(t time.Time) time.Duration {
	return e.Now().Sub(t)
}

// Schedule queues sample to start at the frame matching at. Samples dated in the past start with the next frame.
func (e *Engine) Schedule(sample rhythm.SampleID, at time.Time, gain float64) {
	frames, ok := e.bank[sample]
	if !ok || len(frames) == 0 {
		e.log.WithField("sample", sample).Warn("No audio loaded for sample")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.rate.N(at.Sub(e.origin))
	if start < e.pos {
		e.log.WithFields(logrus.Fields{
			"sample": sample,
			"late":   e.rate.D(e.pos - start),
		}).Debug("Playing late sample immediately")
		start = e.pos
	}

	e.voices = append(e.voices, voice{
		start:  start,
		frames: frames,
		gain:   scale.Limit(gain, 0, 1),
	})
}

// Pending returns the number of voices that have not finished playing.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Stream fills samples with the mix of every active voice. It never runs out.
func (e *Engine) Stream(samples [][2]float64) (n int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}

	end := e.pos + len(samples)
	kept := e.voices[:0]
	for _, v := range e.voices {
		for frame := maxInt(v.start, e.pos); frame < end && frame-v.start < len(v.frames); frame++ {
			src := v.frames[frame-v.start]
			dst := &samples[frame-e.pos]
			dst[0] += src[0] * v.gain
			dst[1] += src[1] * v.gain
		}
		if v.start+len(v.frames) > end {
			kept = append(kept, v)
		}
	}
	e.voices = kept
	e.pos = end

	return len(samples), true
}

// Err implements beep.Streamer.
func (e *Engine) Err() error {
	return nil
}

// Play opens the default output device and starts streaming the engine through it.
func (e *Engine) Play(buffer time.Duration) error {
	if err := speaker.Init(e.rate, e.rate.N(buffer)); err != nil {
		return errors.WithStackTrace(err)
	}
	speaker.Play(e)

	e.log.WithFields(logrus.Fields{
		"rate":   e.rate,
		"buffer": buffer,
	}).Info("Audio output started")
	return nil
}

// Close stops the output device.
func (e *Engine) Close() {
	speaker.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
