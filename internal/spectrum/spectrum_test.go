package spectrum

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/panda/internal/harmonics"
	"github.com/RMahshie/panda/pkg/models"
)

const measurementCSV = `# bench 3, 2024-03-01
order,current_magnitude,current_phase,voltage_magnitude,voltage_phase
3,0.42,170.25,0,0
1,16.1,-2.5,229.8,0
5,0,0,1.2,95.5
`

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"aiff", "csv", "flac", "json", "wav", "yaml"}, r.Formats())

	_, ok := r.Get("CSV")
	assert.True(t, ok)

	_, err := r.Read(context.Background(), "mp3", strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistry_AppliesDefaults(t *testing.T) {
	var got Options
	r := NewRegistry()
	r.Register("test", ReaderFunc(func(_ context.Context, _ io.Reader, opts Options) (*Measurement, error) {
		got = opts
		return &Measurement{}, nil
	}))

	_, err := r.Read(context.Background(), "test", strings.NewReader(""), Options{NominalFrequency: 50})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxOrder, got.MaxOrder)
	assert.Equal(t, 1.0, got.CurrentScale)
	assert.Equal(t, 1.0, got.VoltageScale)
	assert.Equal(t, 50.0, got.NominalFrequency)
}

func TestRegistry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultRegistry().Read(ctx, models.FormatCSV, strings.NewReader(measurementCSV), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"m.csv":            "csv",
		"/data/M.JSON":     "json",
		"bench.yml":        "yaml",
		"bench.yaml":       "yaml",
		"scope.wav":        "wav",
		"archive/run.flac": "flac",
		"capture.AIF":      "aiff",
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("notes.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions(60, models.ConversionOptions{MaxOrder: 50, CurrentScale: 2, IncludeWaveforms: true})
	assert.Equal(t, Options{NominalFrequency: 60, MaxOrder: 50, CurrentScale: 2, IncludeWaveforms: true}, opts)
}

func TestReadCSV(t *testing.T) {
	m, err := ReadCSV(context.Background(), strings.NewReader(measurementCSV), Options{})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 5}, m.Current.Orders())
	assert.Equal(t, []float64{16.1, 0.42, 0}, m.Current.Magnitudes())
	assert.Equal(t, []float64{229.8, 0, 1.2}, m.Voltage.Magnitudes())
	assert.Equal(t, []float64{0, 0, 95.5}, m.Voltage.Phases())
	assert.Nil(t, m.Waveforms)
}

func TestReadCSV_ColumnOrderAndExtras(t *testing.T) {
	in := "Voltage_Phase, voltage_magnitude, note, current_phase, current_magnitude, order\n" +
		"0, 230, fundamental, -3, 10, 1\n"

	m, err := ReadCSV(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, m.Current, 1)
	assert.Equal(t, 10.0, m.Current[0].Magnitude)
	assert.Equal(t, -3.0, m.Current[0].Phase)
	assert.Equal(t, 230.0, m.Voltage[0].Magnitude)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "order,current_magnitude,current_phase,voltage_magnitude\n1,1,0,230\n"},
		{"no rows", "order,current_magnitude,current_phase,voltage_magnitude,voltage_phase\n"},
		{"bad number", "order,current_magnitude,current_phase,voltage_magnitude,voltage_phase\n1,ten,0,230,0\n"},
		{"short row", "order,current_magnitude,current_phase,voltage_magnitude,voltage_phase\n1,10,0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), strings.NewReader(tt.in), Options{})
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestReadJSON(t *testing.T) {
	in := `{
		"current": [{"order": 3, "magnitude": 0.42, "phase": 170.25}, {"order": 1, "magnitude": 16.1, "phase": -2.5}],
		"voltage": [{"order": 1, "magnitude": 229.8, "phase": 0}],
		"waveforms": {"sampling_rate": 4, "current": [0, 1, 0, -1], "voltage": [1, 0, -1, 0]}
	}`

	m, err := ReadJSON(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, m.Current.Orders())
	assert.Equal(t, []float64{229.8}, m.Voltage.Magnitudes())
	require.NotNil(t, m.Waveforms)
	assert.Equal(t, 4, m.Waveforms.SamplingRate)
	assert.Equal(t, []float64{1, 0, -1, 0}, m.Waveforms.Voltage)
}

func TestReadJSON_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":        `{"current": [`,
		"unknown field": `{"current": [{"order": 1, "magnitude": 1, "phase": 0}], "voltage": [{"order": 1, "magnitude": 1, "phase": 0}], "extra": 1}`,
		"no voltage":    `{"current": [{"order": 1, "magnitude": 1, "phase": 0}]}`,
		"no current":    `{"voltage": [{"order": 1, "magnitude": 1, "phase": 0}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJSON(context.Background(), strings.NewReader(in), Options{})
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestReadYAML(t *testing.T) {
	in := `
current:
  - {order: 1, magnitude: 16.1, phase: -2.5}
  - {order: 2.5, magnitude: 0.03, phase: 12}
voltage:
  - order: 1
    magnitude: 229.8
    phase: 0
`
	m, err := ReadYAML(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, m.Current.Orders())
	assert.Equal(t, []float64{229.8}, m.Voltage.Magnitudes())
	assert.Nil(t, m.Waveforms)
}

func TestReadYAML_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"unknown field": "current: []\nvoltage: []\nnotes: x\n",
		"wrong type":    "current: 12\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadYAML(context.Background(), strings.NewReader(in), Options{})
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

// writeWAV writes a 16-bit two-channel WAV with current on channel 0 and voltage on channel 1
func writeWAV(t *testing.T, sampleRate int, current, voltage []float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "measurement.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 0, 2*len(current))
	for i := range current {
		data = append(data, int(math.Round(current[i]*32767)), int(math.Round(voltage[i]*32767)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func sine(sampleRate, frequency, amplitude, phaseDeg float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Cos(2*math.Pi*frequency*float64(i)/sampleRate+phaseDeg*math.Pi/180)
	}
	return out
}

func TestReadWAV(t *testing.T) {
	const rate = 8000
	current := sine(rate, 50, 0.5, 0, rate)
	third := sine(rate, 150, 0.1, 30, rate)
	for i := range current {
		current[i] += third[i]
	}
	voltage := sine(rate, 50, 0.8, -90, rate)
	path := writeWAV(t, rate, current, voltage)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := DefaultRegistry().Read(context.Background(), models.FormatWAV, f, Options{
		NominalFrequency: 50,
		CurrentScale:     20,
		VoltageScale:     400,
		IncludeWaveforms: true,
	})
	require.NoError(t, err)
	require.Len(t, m.Current, DefaultMaxOrder+1)

	i1, _ := m.Current.Lookup(1)
	assert.InDelta(t, 10/math.Sqrt2, i1.Magnitude, 1e-2)
	assert.InDelta(t, 0, i1.Phase, 0.1)

	i3, _ := m.Current.Lookup(3)
	assert.InDelta(t, 2/math.Sqrt2, i3.Magnitude, 1e-2)
	assert.InDelta(t, 30, i3.Phase, 0.1)

	u1, _ := m.Voltage.Lookup(1)
	assert.InDelta(t, 320/math.Sqrt2, u1.Magnitude, 0.1)
	assert.InDelta(t, -90, u1.Phase, 0.1)

	require.NotNil(t, m.Waveforms)
	assert.Equal(t, rate, m.Waveforms.SamplingRate)
	assert.Len(t, m.Waveforms.Current, rate)
	assert.InDelta(t, current[0]*20, m.Waveforms.Current[0], 1e-2)
}

func TestReadWAV_NonSeekableInput(t *testing.T) {
	const rate = 4000
	path := writeWAV(t, rate, sine(rate, 50, 0.5, 0, rate/5), sine(rate, 50, 0.5, 0, rate/5))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	m, err := ReadWAV(context.Background(), io.MultiReader(bytes.NewReader(data)), Options{
		NominalFrequency: 50,
		MaxOrder:         10,
		CurrentScale:     1,
		VoltageScale:     1,
	})
	require.NoError(t, err)
	assert.Len(t, m.Current, 11)
	assert.Nil(t, m.Waveforms)
}

func TestReadWAV_Errors(t *testing.T) {
	_, err := ReadWAV(context.Background(), strings.NewReader("RIFF but not really"), Options{NominalFrequency: 50, MaxOrder: 40})
	assert.ErrorIs(t, err, ErrMalformedInput)

	const rate = 1000
	path := writeWAV(t, rate, sine(rate, 50, 0.5, 0, rate), sine(rate, 50, 0.5, 0, rate))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = ReadWAV(context.Background(), f, Options{NominalFrequency: 50, MaxOrder: 40, CurrentScale: 1, VoltageScale: 1})
	assert.ErrorIs(t, err, harmonics.ErrAliasing)
	assert.ErrorIs(t, err, ErrMalformedInput)

	short := writeWAV(t, rate, sine(rate, 50, 0.5, 0, 10), sine(rate, 50, 0.5, 0, 10))
	f2, err := os.Open(short)
	require.NoError(t, err)
	defer f2.Close()

	_, err = ReadWAV(context.Background(), f2, Options{NominalFrequency: 50, MaxOrder: 5, CurrentScale: 1, VoltageScale: 1})
	assert.ErrorIs(t, err, harmonics.ErrTooShort)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestReadWAV_EightBit(t *testing.T) {
	const rate = 4000
	current := sine(rate, 50, 0.5, 0, rate)
	voltage := sine(rate, 50, 0.75, -30, rate)

	data := make([]int, 0, 2*len(current))
	for i := range current {
		data = append(data, 128+int(math.Round(current[i]*127)), 128+int(math.Round(voltage[i]*127)))
	}

	path := filepath.Join(t.TempDir(), "eight.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(out, rate, 8, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 8,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, out.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	m, err := ReadWAV(context.Background(), in, Options{
		NominalFrequency: 50,
		MaxOrder:         10,
		CurrentScale:     10,
		VoltageScale:     400,
	})
	require.NoError(t, err)

	i0, _ := m.Current.Lookup(0)
	assert.InDelta(t, 0, i0.Magnitude, 0.05)
	i1, _ := m.Current.Lookup(1)
	assert.InDelta(t, 5*127.0/128/math.Sqrt2, i1.Magnitude, 0.05)

	u0, _ := m.Voltage.Lookup(0)
	assert.InDelta(t, 0, u0.Magnitude, 2)
	u1, _ := m.Voltage.Lookup(1)
	assert.InDelta(t, 300*127.0/128/math.Sqrt2, u1.Magnitude, 2)
	assert.InDelta(t, -30, u1.Phase, 1)
}

func TestReadFLAC_Invalid(t *testing.T) {
	_, err := ReadFLAC(context.Background(), strings.NewReader("fLaC-not-a-stream"), Options{NominalFrequency: 50, MaxOrder: 40})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestReadAIFF(t *testing.T) {
	const rate = 10000
	current := sine(rate, 60, 0.25, 0, rate/2)
	voltage := sine(rate, 60, 0.5, -45, rate/2)

	data := make([]int, 0, 2*len(current))
	for i := range current {
		data = append(data, int(math.Round(current[i]*32767)), int(math.Round(voltage[i]*32767)))
	}

	path := filepath.Join(t.TempDir(), "capture.aiff")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := aiff.NewEncoder(f, rate, 16, 2)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	m, err := DefaultRegistry().Read(context.Background(), models.FormatAIFF, in, Options{
		NominalFrequency: 60,
		MaxOrder:         25,
		CurrentScale:     4,
		VoltageScale:     650,
	})
	require.NoError(t, err)
	require.Len(t, m.Current, 26)
	assert.Nil(t, m.Waveforms)

	i1, _ := m.Current.Lookup(1)
	assert.InDelta(t, 1/math.Sqrt2, i1.Magnitude, 1e-2)

	u1, _ := m.Voltage.Lookup(1)
	assert.InDelta(t, 325/math.Sqrt2, u1.Magnitude, 0.2)
	assert.InDelta(t, -45, u1.Phase, 0.1)
}

func TestReadAIFF_Invalid(t *testing.T) {
	_, err := ReadAIFF(context.Background(), strings.NewReader("FORM but not really"), Options{NominalFrequency: 50, MaxOrder: 40})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

// encodeFLAC writes a 16-bit two-channel FLAC stream of verbatim frames
func encodeFLAC(t *testing.T, sampleRate int, current, voltage []float64) []byte {
	t.Helper()
	const blockSize = 1000

	var out bytes.Buffer
	enc, err := flac.NewEncoder(&out, &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      uint64(len(current)),
	})
	require.NoError(t, err)

	toPCM := func(x []float64) []int32 {
		pcm := make([]int32, len(x))
		for i, v := range x {
			pcm[i] = int32(math.Round(v * 32767))
		}
		return pcm
	}
	ci, vi := toPCM(current), toPCM(voltage)

	for start := 0; start < len(ci); start += blockSize {
		end := min(start+blockSize, len(ci))
		n := end - start
		require.NoError(t, enc.WriteFrame(&frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.ChannelsLR,
				BitsPerSample:     16,
			},
			Subframes: []*frame.Subframe{
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: ci[start:end], NSamples: n},
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: vi[start:end], NSamples: n},
			},
		}))
	}
	require.NoError(t, enc.Close())
	return out.Bytes()
}

func TestReadFLAC(t *testing.T) {
	const rate = 8000
	current := sine(rate, 50, 0.5, 20, rate)
	fifth := sine(rate, 250, 0.05, -60, rate)
	for i := range current {
		current[i] += fifth[i]
	}
	voltage := sine(rate, 50, 0.8, 0, rate)
	data := encodeFLAC(t, rate, current, voltage)

	m, err := DefaultRegistry().Read(context.Background(), models.FormatFLAC, bytes.NewReader(data), Options{
		NominalFrequency: 50,
		MaxOrder:         20,
		CurrentScale:     20,
		VoltageScale:     400,
		IncludeWaveforms: true,
	})
	require.NoError(t, err)
	require.Len(t, m.Current, 21)

	i1, _ := m.Current.Lookup(1)
	assert.InDelta(t, 10/math.Sqrt2, i1.Magnitude, 1e-2)
	assert.InDelta(t, 20, i1.Phase, 0.1)

	i5, _ := m.Current.Lookup(5)
	assert.InDelta(t, 1/math.Sqrt2, i5.Magnitude, 1e-2)
	assert.InDelta(t, -60, i5.Phase, 0.1)

	u1, _ := m.Voltage.Lookup(1)
	assert.InDelta(t, 320/math.Sqrt2, u1.Magnitude, 0.1)
	assert.InDelta(t, 0, u1.Phase, 0.1)

	require.NotNil(t, m.Waveforms)
	assert.Equal(t, rate, m.Waveforms.SamplingRate)
	assert.Len(t, m.Waveforms.Voltage, rate)
	assert.InDelta(t, voltage[1]*400, m.Waveforms.Voltage[1], 0.05)
}

func TestReadFLAC_MonoRejected(t *testing.T) {
	const rate = 8000
	var out bytes.Buffer
	enc, err := flac.NewEncoder(&out, &meta.StreamInfo{
		BlockSizeMin:  1000,
		BlockSizeMax:  1000,
		SampleRate:    rate,
		NChannels:     1,
		BitsPerSample: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: true,
			BlockSize:         1000,
			SampleRate:        rate,
			Channels:          frame.ChannelsMono,
			BitsPerSample:     16,
		},
		Subframes: []*frame.Subframe{
			{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: make([]int32, 1000), NSamples: 1000},
		},
	}))
	require.NoError(t, enc.Close())

	_, err = ReadFLAC(context.Background(), bytes.NewReader(out.Bytes()), Options{NominalFrequency: 50, MaxOrder: 10})
	assert.ErrorIs(t, err, ErrMalformedInput)
}
