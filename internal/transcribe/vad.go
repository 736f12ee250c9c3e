package transcribe

import "math"

const (
	vadFrame     = 30  // ms
	vadPadding   = 200 // ms
	vadThreshold = 0.01
)

// TrimSilence drops leading and trailing frames whose RMS energy is below
// the speech threshold, keeping some padding around the voiced region. It
// returns an empty slice when no frame is voiced. The input is not
// modified; the result shares its backing array.
func TrimSilence(samples []float32, sampleRate int) []float32 {
	frame := sampleRate * vadFrame / 1000
	if frame <= 0 || len(samples) == 0 {
		return samples[:0]
	}

	first, last := -1, -1
	for start := 0; start < len(samples); start += frame {
		end := min(start+frame, len(samples))
		if rms(samples[start:end]) >= vadThreshold {
			if first < 0 {
				first = start
			}
			last = end
		}
	}
	if first < 0 {
		return samples[:0]
	}

	pad := sampleRate * vadPadding / 1000
	first = max(first-pad, 0)
	last = min(last+pad, len(samples))
	return samples[first:last]
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
