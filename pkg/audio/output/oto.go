// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays one PCM stream at a time through a single process-wide oto context
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/mp3stream/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

const (
	drainPollInterval = 10 * time.Millisecond
	drainGrace        = 2 * time.Second
)

// Oto output implementation using oto library
type Oto struct {
	logger *zap.Logger

	// oto allows a single context per process, so the first stream fixes
	// the device format and later streams are resampled to it
	otoCtx     *oto.Context
	sampleRate int
	channels   int

	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	pipeline   *pipeline
	bufferTime time.Duration

	volume int
	muted  bool
}

// NewOto creates a new Oto output
func NewOto(logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.L()
	}
	return &Oto{
		logger: logger.Named("output"),
		volume: 100,
	}
}

// Open starts a new stream. Any stream still open is stopped first.
func (o *Oto) Open(format audio.Format, bufferBytes int) error {
	if format.Codec != audio.CodecPCM || format.BitDepth != 16 {
		return fmt.Errorf("unsupported output format: %s %d-bit", format.Codec, format.BitDepth)
	}
	if format.Channels < 1 || format.Channels > 2 {
		return fmt.Errorf("unsupported channel count: %d", format.Channels)
	}
	if format.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", format.SampleRate)
	}

	if o.player != nil {
		o.Stop()
	}

	if o.otoCtx != nil && o.channels != format.Channels {
		return fmt.Errorf("channel count change %d -> %d not supported by the open device", o.channels, format.Channels)
	}

	bufferTime := format.Duration(bufferBytes)

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   bufferTime,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = format.SampleRate
		o.channels = format.Channels
		o.logger.Info("audio output initialized",
			zap.Int("sample_rate", format.SampleRate),
			zap.Int("channels", format.Channels),
			zap.Duration("buffer", bufferTime))
	} else if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	p, err := newPipeline(format, o.sampleRate)
	if err != nil {
		return err
	}
	if p.resampler != nil {
		o.logger.Info("resampling stream to device rate",
			zap.Int("from", format.SampleRate),
			zap.Int("to", o.sampleRate))
	}

	o.pipeline = p
	o.bufferTime = bufferTime
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	return nil
}

// Write queues PCM bytes for playback (blocks until the player accepts them)
func (o *Oto) Write(p []byte) (int, error) {
	if o.player == nil {
		return 0, ErrNotOpen
	}

	out, err := o.pipeline.process(p, o.volume, o.muted)
	if err != nil {
		return 0, err
	}
	if len(out) > 0 {
		if _, err := o.pipeWriter.Write(out); err != nil {
			return 0, fmt.Errorf("pipe write failed: %w", err)
		}
	}
	return len(p), nil
}

// Drain ends the stream and waits until the player has played everything queued
func (o *Oto) Drain() error {
	if o.player == nil {
		return ErrNotOpen
	}

	if n := o.pipeline.buffered(); n > 0 {
		o.logger.Debug("dropping incomplete trailing frame", zap.Int("bytes", n))
	}

	o.pipeWriter.Close()

	deadline := time.Now().Add(o.bufferTime + drainGrace)
	for o.player.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(drainPollInterval)
	}

	return o.Stop()
}

// Stop abandons the current stream
func (o *Oto) Stop() error {
	var err error
	if o.player != nil {
		o.player.Pause()
		err = o.player.Close()
		o.player = nil
	}
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.pipeline = nil
	if err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	err := o.Stop()
	if o.otoCtx != nil {
		if serr := o.otoCtx.Suspend(); serr != nil && err == nil {
			err = fmt.Errorf("failed to suspend oto context: %w", serr)
		}
	}
	return err
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.volume = volume
	o.logger.Debug("volume set", zap.Int("volume", volume))
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.muted = muted
	o.logger.Debug("mute set", zap.Bool("muted", muted))
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	return o.muted
}
