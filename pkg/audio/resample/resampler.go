// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Carries the last input frame across calls so chunk seams interpolate smoothly
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastSample []int32 // one sample per channel
	hasLast    bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		position:   0.0,
		lastSample: make([]int32, channels),
	}
}

// InputRate returns the rate samples are expected in
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the rate samples are produced at
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// frame returns sample ch of virtual frame i, where frame 0 is the
// carried frame from the previous call when one exists.
func (r *Resampler) frame(input []int32, i, ch int) int32 {
	if r.hasLast {
		if i == 0 {
			return r.lastSample[ch]
		}
		i--
	}
	return input[i*r.channels+ch]
}

// Resample converts input samples to output sample rate using linear interpolation
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
//
// The final input frame is held back and used as the left edge of the next
// call, so output lags input by one frame.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	total := inputFrames
	if r.hasLast {
		total++
	}
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx >= total-1 {
			break
		}

		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			sample1 := r.frame(input, idx, ch)
			sample2 := r.frame(input, idx+1, ch)
			interpolated := float64(sample1)*(1.0-frac) + float64(sample2)*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	// Re-base position onto the frame being carried forward.
	// Stopping early because output is full leaves a positive remainder
	// that would skip frames, so clamp it to the carried frame.
	r.position -= float64(total - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastSample, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.hasLast = true

	return outIdx * r.channels
}

// Process resamples input into a freshly allocated slice
func (r *Resampler) Process(input []int32) []int32 {
	output := make([]int32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, output)
	return output[:n]
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.hasLast = false
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputSamplesNeeded returns an output buffer size large enough for any
// single call with inputSamples samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	outputFrames := int(float64(inputFrames)/r.ratio) + 1
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
