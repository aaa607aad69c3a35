package audio

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/gruntwork-io/go-commons/errors"

	"github.com/robmorgan/pulse/rhythm"
)

const (
	resampleQuality = 4
	clickLength     = 40 * time.Millisecond
	clickDecay      = 90.0
)

var clickPitch = map[rhythm.SampleID]float64{
	rhythm.AccentSample: 1760,
	rhythm.PulseSample:  1320,
	rhythm.SubSample:    880,
}

// Bank holds every sample decoded to stereo frames at one sample rate.
type Bank map[rhythm.SampleID][][2]float64

// LoadBank decodes the WAV file configured for each sample, keyed by sample name. Samples without a file get a
// synthesized click.
func LoadBank(paths map[string]string, rate beep.SampleRate) (Bank, error) {
	bank := Bank{}
	for _, id := range rhythm.SampleIDs {
		path := paths[id.String()]
		if path == "" {
			bank[id] = Click(id, rate)
			continue
		}

		frames, err := loadWAV(path, rate)
		if err != nil {
			return nil, err
		}
		bank[id] = frames
	}
	return bank, nil
}

func loadWAV(path string, rate beep.SampleRate) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, errors.WithStackTrace(fmt.Errorf("decoding %s: %w", path, err))
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(resampleQuality, format.SampleRate, rate, streamer)
	}

	frames, err := drain(s)
	if err != nil {
		return nil, errors.WithStackTrace(fmt.Errorf("reading %s: %w", path, err))
	}
	return frames, nil
}

// Click synthesizes a short decaying sine blip for a sample.
func Click(id rhythm.SampleID, rate beep.SampleRate) [][2]float64 {
	pitch := clickPitch[id]
	i := 0
	osc := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for j := range samples {
			t := rate.D(i).Seconds()
			v := math.Sin(2*math.Pi*pitch*t) * math.Exp(-clickDecay*t)
			samples[j] = [2]float64{v, v}
			i++
		}
		return len(samples), true
	})

	frames, _ := drain(beep.Take(rate.N(clickLength), osc))
	return frames
}

func drain(s beep.Streamer) ([][2]float64, error) {
	var out [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		out = append(out, buf[:n]...)
		if !ok || n == 0 {
			break
		}
	}
	return out, s.Err()
}
