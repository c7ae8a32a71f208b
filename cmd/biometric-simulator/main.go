// Package main streams synthetic Oralable-style sensor data through the
// biometric processor and writes each result as JSON or MessagePack.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/biometrics/internal/constants"
	"github.com/chrissnell/biometrics/internal/log"
	"github.com/chrissnell/biometrics/internal/processor"
	"github.com/chrissnell/biometrics/internal/spo2"
	"github.com/chrissnell/biometrics/internal/synth"
	"github.com/chrissnell/biometrics/internal/types"
	"github.com/chrissnell/biometrics/pkg/config"
	"github.com/chrissnell/biometrics/pkg/migrate"
	"github.com/chrissnell/biometrics/pkg/resultformat"
)

type options struct {
	profile  string
	config   string
	duration time.Duration
	format   string
	curve    string
	output   string
	seed     int64
	every    int
	realtime bool
	batch    bool
	debug    bool
	version  bool
	list     bool
	schema   string
}

func main() {
	var opts options
	flag.StringVar(&opts.profile, "profile", config.ProfileOralable, "analysis profile name")
	flag.StringVar(&opts.config, "config", "", "profile source: a .yaml/.yml file or a SQLite .db (default: built-in presets)")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "length of the simulated recording")
	flag.StringVar(&opts.format, "format", "json", "output format: json or msgpack")
	flag.StringVar(&opts.curve, "curve", "", "SpO2 calibration curve override: linear, quadratic or cubic")
	flag.StringVar(&opts.output, "output", "-", "output file, - for stdout")
	flag.Int64Var(&opts.seed, "seed", 1, "random seed for the synthetic signal")
	flag.IntVar(&opts.every, "every", 1, "write every Nth realtime result")
	flag.BoolVar(&opts.realtime, "realtime", false, "pace samples at the profile's sample rate")
	flag.BoolVar(&opts.batch, "batch", false, "reduce the whole recording in one batch pass")
	flag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&opts.version, "version", false, "print version and exit")
	flag.BoolVar(&opts.list, "list-profiles", false, "print the available profiles and exit")
	flag.StringVar(&opts.schema, "migrate-schema", "", "migrate the SQLite -config profile store to a schema version (or \"latest\") and exit")
	flag.Parse()

	if opts.version {
		fmt.Printf("%s %s\n", constants.SimulatorName, constants.Version)
		return
	}

	level := "info"
	if opts.debug {
		level = "debug"
	}
	if err := log.Init(level, "console"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if opts.list {
		if err := listProfiles(os.Stdout, opts.config); err != nil {
			log.Fatalf("failed to list profiles: %v", err)
		}
		return
	}

	if opts.schema != "" {
		if err := migrateStore(opts.config, opts.schema); err != nil {
			log.Fatalf("failed to migrate profile store: %v", err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("simulator failed: %v", err)
	}
}

func run(ctx context.Context, opts options) (err error) {
	profile, err := loadProfile(opts.config, opts.profile)
	if err != nil {
		return err
	}

	format, err := resultformat.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	logger := log.GetSugaredLogger()
	procOpts := []processor.Option{
		processor.WithLogger(logger.Named("processor")),
		processor.WithMaxGap(time.Second),
	}
	if opts.curve != "" {
		curve, err := spo2.ParseCurve(opts.curve)
		if err != nil {
			return err
		}
		procOpts = append(procOpts, processor.WithCurve(curve))
	}
	proc := processor.New(profile, procOpts...)

	out, closeOut, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("failed to flush output: %w", ferr)
		}
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	session := uuid.New().String()
	enc := resultformat.NewEncoder(w, format, session)

	params := synth.DefaultParams()
	params.SampleRate = profile.SampleRate
	gen := synth.NewGenerator(params, time.Now(), opts.seed)
	total := int(opts.duration.Seconds() * profile.SampleRate)

	log.Infow("starting simulation",
		"version", constants.Version,
		"session", session,
		"profile", profile.Name,
		"sample_rate", profile.SampleRate,
		"samples", total,
		"required", proc.RequiredBufferSize(),
		"format", format.String(),
		"content_type", format.ContentType(),
	)

	if opts.batch {
		res := proc.ProcessRecording(gen.Generate(total))
		if !res.HasData() {
			log.Warnf("recording of %d samples produced no measurement", total)
		}
		return enc.Encode(res)
	}

	var ticker *time.Ticker
	if opts.realtime {
		ticker = time.NewTicker(time.Duration(float64(time.Second) / profile.SampleRate))
		defer ticker.Stop()
	}

	every := opts.every
	if every < 1 {
		every = 1
	}
	var last types.BiometricResult
	for i := 0; i < total; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return summarize(enc, last)
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return summarize(enc, last)
		}

		last = proc.ProcessSample(gen.Next())
		if i%every != 0 {
			continue
		}
		if err := enc.Encode(last); err != nil {
			return err
		}
		if ticker != nil {
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
		}
	}
	return summarize(enc, last)
}

func summarize(enc *resultformat.Encoder, last types.BiometricResult) error {
	log.Infow("simulation finished",
		"records", enc.Count(),
		"heart_rate", last.HeartRate,
		"spo2", last.SpO2,
		"activity", last.Activity.String(),
		"signal", last.SignalStrength.String(),
	)
	return nil
}

func openProvider(source string) (config.ProfileProvider, error) {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return config.NewYAMLProvider(source), nil
	case ".db", ".sqlite":
		return config.NewSQLiteProvider(source)
	default:
		return nil, fmt.Errorf("unsupported profile source %s", source)
	}
}

// loadProfile resolves a profile from the presets or from the given source
func loadProfile(source, name string) (config.Profile, error) {
	if source == "" {
		return config.Preset(name)
	}

	provider, err := openProvider(source)
	if err != nil {
		return config.Profile{}, err
	}
	defer provider.Close()

	profile, err := provider.GetProfile(name)
	if err != nil {
		return config.Profile{}, fmt.Errorf("failed to load profile %q from %s: %w", name, source, err)
	}
	log.Debugf("loaded profile %q from %s", name, source)
	return profile, nil
}

func migrateStore(source, schema string) error {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".db", ".sqlite":
	default:
		return fmt.Errorf("-migrate-schema needs a SQLite -config, got %q", source)
	}

	version := migrate.Latest
	if schema != "latest" {
		v, err := strconv.Atoi(schema)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid schema version %q", schema)
		}
		version = v
	}

	from, to, err := config.MigrateProfileStore(source, version, log.GetSugaredLogger().Named("migrate"))
	if err != nil {
		return err
	}
	log.Infof("profile store %s at schema version %d (was %d)", source, to, from)
	return nil
}

func listProfiles(w io.Writer, source string) error {
	profiles := config.Presets()
	if source != "" {
		provider, err := openProvider(source)
		if err != nil {
			return err
		}
		defer provider.Close()
		if profiles, err = provider.LoadProfiles(); err != nil {
			return err
		}
	}

	for _, p := range profiles {
		fmt.Fprintf(w, "%-12s %6.0f Hz  hr %4.1fs  spo2 %4.1fs  %3.0f-%3.0f bpm  %-9s %s\n",
			p.Name, p.SampleRate, p.HRWindowSeconds, p.SpO2WindowSeconds, p.MinBPM, p.MaxBPM, p.SpO2Curve, p.Description)
	}
	return nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
