// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation resampling and chunk seam continuity
package resample

import (
	"testing"
)

func ramp(n, step int) []int32 {
	input := make([]int32, n)
	for i := range input {
		input[i] = int32(i * step)
	}
	return input
}

func TestNew(t *testing.T) {
	r := New(44100, 48000, 2)

	if r == nil {
		t.Fatal("expected resampler to be created")
	}
	if r.InputRate() != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.InputRate())
	}
	if r.OutputRate() != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.OutputRate())
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(44100, 48000, 2)

	input := ramp(200, 100)
	expectedSize := int(float64(len(input)) * float64(48000) / float64(44100))
	output := make([]int32, expectedSize)

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	if n < expectedSize-10 || n > expectedSize+10 {
		t.Errorf("expected ~%d samples, got %d", expectedSize, n)
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(48000, 44100, 2)

	input := ramp(200, 100)
	expectedSize := int(float64(len(input)) * float64(44100) / float64(48000))
	output := make([]int32, expectedSize)

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	if n < expectedSize-10 || n > expectedSize+10 {
		t.Errorf("expected ~%d samples, got %d", expectedSize, n)
	}
}

func TestResampleSameRate(t *testing.T) {
	r := New(48000, 48000, 2)

	input := ramp(200, 100)
	output := make([]int32, len(input)+10)
	n := r.Resample(input, output)

	// The last frame is held for the next call
	if n != len(input)-2 {
		t.Fatalf("expected %d samples, got %d", len(input)-2, n)
	}
	for i := 0; i < n; i++ {
		if output[i] != input[i] {
			t.Errorf("sample %d: expected %d, got %d", i, input[i], output[i])
		}
	}
}

func TestResampleStereo(t *testing.T) {
	r := New(44100, 48000, 2)

	input := make([]int32, 20)
	for i := 0; i < 10; i++ {
		input[i*2] = 1000
		input[i*2+1] = -1000
	}

	output := make([]int32, 30)
	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("resampler produced no output")
	}

	for i := 0; i < n/2; i++ {
		if output[i*2] < 990 {
			t.Errorf("frame %d: left = %d, want ~1000", i, output[i*2])
		}
		if output[i*2+1] > -990 {
			t.Errorf("frame %d: right = %d, want ~-1000", i, output[i*2+1])
		}
	}
}

func TestResampleChunkedMatchesWhole(t *testing.T) {
	tests := []struct {
		name       string
		inputRate  int
		outputRate int
	}{
		{"upsample 2x", 22050, 44100},
		{"downsample 2x", 88200, 44100},
		{"same rate", 44100, 44100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := ramp(40, 37)

			whole := New(tt.inputRate, tt.outputRate, 1).Process(input)

			r := New(tt.inputRate, tt.outputRate, 1)
			var chunked []int32
			for start := 0; start < len(input); start += 10 {
				chunked = append(chunked, r.Process(input[start:start+10])...)
			}

			if len(chunked) != len(whole) {
				t.Fatalf("chunked produced %d samples, whole produced %d", len(chunked), len(whole))
			}
			for i := range whole {
				if chunked[i] != whole[i] {
					t.Errorf("sample %d: chunked %d, whole %d", i, chunked[i], whole[i])
				}
			}
		})
	}
}

func TestResampleSeamInterpolates(t *testing.T) {
	r := New(22050, 44100, 1)

	first := r.Process([]int32{0, 100})
	second := r.Process([]int32{200, 300})

	// Output after the first chunk stops at the held frame
	if len(first) != 2 || first[0] != 0 || first[1] != 50 {
		t.Fatalf("unexpected first output %v", first)
	}
	want := []int32{100, 150, 200, 250}
	if len(second) != len(want) {
		t.Fatalf("expected %v, got %v", want, second)
	}
	for i := range want {
		if second[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], second[i])
		}
	}
}

func TestResampleLargeRatioUp(t *testing.T) {
	r := New(44100, 192000, 2)

	input := ramp(200, 10)
	expectedSize := int(float64(len(input)) * float64(192000) / float64(44100))
	output := make([]int32, expectedSize)

	n := r.Resample(input, output)
	if n < len(input)*3 {
		t.Errorf("expected at least 3x upsampling, got %d from %d", n, len(input))
	}
}

func TestResampleLargeRatioDown(t *testing.T) {
	r := New(192000, 48000, 2)

	input := ramp(200, 10)
	expectedSize := int(float64(len(input)) * float64(48000) / float64(192000))
	output := make([]int32, expectedSize)

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	if n > len(input)/2 {
		t.Errorf("expected at most 1/2 samples after downsampling, got %d from %d", n, len(input))
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := New(44100, 48000, 2)

	n := r.Resample([]int32{}, make([]int32, 100))
	if n != 0 {
		t.Errorf("expected 0 samples from empty input, got %d", n)
	}
}

func TestReset(t *testing.T) {
	r := New(22050, 44100, 1)
	r.Process([]int32{0, 100, 200})
	r.Reset()

	out := r.Process([]int32{500, 600})
	if len(out) != 2 || out[0] != 500 {
		t.Errorf("expected reset resampler to start at 500, got %v", out)
	}
}
