// Command pandaconv converts a measurement into a PANDA harmonic database file,
// or prints an existing PANDA file as JSON.
//
//	pandaconv --input meas.csv --metadata eut.yaml --output eut.txt
//	pandaconv --input capture.wav --metadata eut.yaml --current-scale 20 --waveforms
//	pandaconv --decode --input eut.txt
//
// Every flag can also be set through a PANDACONV_* environment variable, for
// example PANDACONV_MAX_ORDER=50.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RMahshie/panda/internal/conversion"
	"github.com/RMahshie/panda/internal/spectrum"
	"github.com/RMahshie/panda/pkg/models"
	"github.com/RMahshie/panda/pkg/panda"
)

var errUsage = errors.New("usage error")

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error().Err(err).Msg("pandaconv failed")
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("pandaconv", pflag.ContinueOnError)
	fs.StringP("input", "i", "", "measurement file (csv, json, yaml, wav, flac, aiff) or PANDA file with --decode")
	fs.StringP("output", "o", "", "output path; defaults to the input name with .txt, or stdout with --decode")
	fs.StringP("metadata", "m", "", "YAML file with user and equipment details")
	fs.StringP("format", "f", "", "input format; inferred from the extension when empty")
	fs.Int("max-order", spectrum.DefaultMaxOrder, "highest harmonic order extracted from waveforms")
	fs.Float64("current-scale", 1, "amperes per full-scale sample for waveform inputs")
	fs.Float64("voltage-scale", 1, "volts per full-scale sample for waveform inputs")
	fs.Bool("waveforms", false, "store raw waveforms in the PANDA file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Bool("decode", false, "print the PANDA file given by --input as JSON")
	return fs
}

func loadSettings(args []string) (*viper.Viper, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("PANDACONV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	v, err := loadSettings(args)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("log-level")))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	input := v.GetString("input")
	if input == "" {
		return fmt.Errorf("%w: --input is required", errUsage)
	}

	if v.GetBool("decode") {
		return decode(input, v.GetString("output"), stdout)
	}

	metadataPath := v.GetString("metadata")
	if metadataPath == "" {
		return fmt.Errorf("%w: --metadata is required", errUsage)
	}
	meta, err := conversion.LoadMetadata(metadataPath)
	if err != nil {
		return err
	}

	output := v.GetString("output")
	if output == "" {
		output = defaultOutput(input)
	}

	opts := spectrum.NewOptions(meta.NominalFrequency, models.ConversionOptions{
		MaxOrder:         v.GetInt("max-order"),
		CurrentScale:     v.GetFloat64("current-scale"),
		VoltageScale:     v.GetFloat64("voltage-scale"),
		IncludeWaveforms: v.GetBool("waveforms"),
	})

	converter := conversion.NewConverter(nil)
	f, err := converter.ConvertFile(ctx, input, output, v.GetString("format"), meta, opts)
	if err != nil {
		return err
	}

	event := log.Info().
		Str("output", output).
		Int("currentHarmonics", len(f.Harmonics.Current.NonZero())).
		Int("voltageHarmonics", len(f.Harmonics.Voltage.NonZero()))
	if thd, ok := panda.THD(f.Harmonics.Current); ok {
		event = event.Float64("currentTHD", thd)
	}
	event.Msg("Conversion complete")
	return nil
}

func decode(input, output string, stdout io.Writer) error {
	f, err := panda.ReadFile(input)
	if err != nil {
		return err
	}

	body := models.NewDecodeResponseBody(f)
	write := func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
		return nil
	}

	if output == "" {
		return write(stdout)
	}
	return writeFileAtomic(output, write)
}

// writeFileAtomic writes to a temporary file next to path and renames it into
// place once write succeeds.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func defaultOutput(input string) string {
	out := strings.TrimSuffix(input, filepath.Ext(input)) + ".txt"
	if out == input {
		out = input + ".panda.txt"
	}
	return out
}
