package spectrum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"github.com/RMahshie/panda/internal/harmonics"
	"github.com/RMahshie/panda/pkg/panda"
)

// Channel layout of waveform inputs
const (
	CurrentChannel = 0
	VoltageChannel = 1
)

// ReadWAV analyzes a PCM WAV file. Samples are normalized to [-1, 1) and then
// multiplied by the current and voltage scale factors.
func ReadWAV(ctx context.Context, r io.Reader, opts Options) (*Measurement, error) {
	rs, err := seekable(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV input: %w", err)
	}

	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, malformed("not a valid WAV file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, malformed("failed to decode WAV samples: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 8-bit WAV samples are unsigned with silence at 128
	if d.BitDepth == 8 {
		for i := range buf.Data {
			buf.Data[i] -= 128
		}
	}

	return analyzeBuffer(buf, int(d.SampleRate), int(d.BitDepth), opts)
}

// ReadAIFF analyzes a PCM AIFF file with the same channel layout as ReadWAV
func ReadAIFF(ctx context.Context, r io.Reader, opts Options) (*Measurement, error) {
	rs, err := seekable(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read AIFF input: %w", err)
	}

	d := aiff.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, malformed("not a valid AIFF file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, malformed("failed to decode AIFF samples: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return analyzeBuffer(buf, d.SampleRate, int(d.BitDepth), opts)
}

// go-audio decoders need to seek
func seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// ReadFLAC analyzes a FLAC stream with the same channel layout as ReadWAV
func ReadFLAC(ctx context.Context, r io.Reader, opts Options) (*Measurement, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, malformed("not a valid FLAC stream: %v", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(stream.Info.SampleRate),
		},
		SourceBitDepth: int(stream.Info.BitsPerSample),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("failed to decode FLAC frame: %v", err)
		}

		n := frame.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				buf.Data = append(buf.Data, int(sub.Samples[i]))
			}
		}
	}

	return analyzeBuffer(buf, buf.Format.SampleRate, buf.SourceBitDepth, opts)
}

func analyzeBuffer(buf *audio.IntBuffer, sampleRate, bitDepth int, opts Options) (*Measurement, error) {
	if buf == nil || buf.Format == nil {
		return nil, malformed("missing audio format")
	}
	if buf.Format.NumChannels < 2 {
		return nil, malformed("need a current and a voltage channel, got %d channel(s)", buf.Format.NumChannels)
	}
	if sampleRate <= 0 {
		return nil, malformed("invalid sample rate %d", sampleRate)
	}
	if bitDepth < 2 || bitDepth > 32 {
		return nil, malformed("unsupported bit depth %d", bitDepth)
	}
	if len(buf.Data) == 0 {
		return nil, malformed("no samples")
	}

	fullScale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / fullScale
	}

	channels := harmonics.Deinterleave(samples, buf.Format.NumChannels)
	current := harmonics.Scale(channels[CurrentChannel], opts.CurrentScale)
	voltage := harmonics.Scale(channels[VoltageChannel], opts.VoltageScale)

	return analyze(current, voltage, sampleRate, opts)
}

func analyze(current, voltage []float64, sampleRate int, opts Options) (*Measurement, error) {
	cs, err := harmonics.Analyze(current, float64(sampleRate), opts.NominalFrequency, opts.MaxOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: current waveform: %w", ErrMalformedInput, err)
	}
	vs, err := harmonics.Analyze(voltage, float64(sampleRate), opts.NominalFrequency, opts.MaxOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: voltage waveform: %w", ErrMalformedInput, err)
	}

	m := &Measurement{Current: cs, Voltage: vs}
	if opts.IncludeWaveforms {
		m.Waveforms = &panda.Waveforms{
			SamplingRate: sampleRate,
			Current:      current,
			Voltage:      voltage,
		}
	}
	return m, nil
}
