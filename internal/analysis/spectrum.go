package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/micrenda/circlesim-sub000/internal/dynamo"
)

// PowerSpectrum returns the one-sided amplitude spectrum of samples taken
// every dt. freqs are in cycles per unit time.
func PowerSpectrum(samples []float64, dt float64) (freqs, power []float64, err error) {
	if len(samples) < 2 {
		return nil, nil, dynamo.Configf("spectrum needs at least 2 samples, got %d", len(samples))
	}
	if !(dt > 0) {
		return nil, nil, dynamo.Configf("sample spacing must be positive, got %g", dt)
	}

	fft := fourier.NewFFT(len(samples))
	coeff := fft.Coefficients(nil, samples)
	freqs = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for i, c := range coeff {
		freqs[i] = fft.Freq(i) / dt
		power[i] = cmplx.Abs(c) / float64(len(samples))
	}
	return freqs, power, nil
}

// DominantFrequency returns the non-zero frequency with the largest amplitude
// after a Hann window, which keeps a strong off-bin line from leaking over
// its neighbours.
func DominantFrequency(samples []float64, dt float64) (float64, error) {
	windowed := append([]float64(nil), samples...)
	window.Apply(windowed, window.Hann)
	freqs, power, err := PowerSpectrum(windowed, dt)
	if err != nil {
		return 0, err
	}
	best := 1
	for i := 2; i < len(power); i++ {
		if power[i] > power[best] {
			best = i
		}
	}
	return freqs[best], nil
}
