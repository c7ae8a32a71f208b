package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/biometrics/pkg/config"
	"github.com/chrissnell/biometrics/pkg/resultformat"
)

func readRecords(t *testing.T, path string, format resultformat.Format) []resultformat.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var records []resultformat.Record
	dec := resultformat.NewDecoder(f, format)
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return records
		}
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, rec)
	}
}

func TestRunStreaming(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.msgpack")
	err := run(context.Background(), options{
		profile:  config.ProfileDemo,
		duration: 5 * time.Second,
		format:   "msgpack",
		output:   out,
		seed:     1,
		every:    5,
	})
	if err != nil {
		t.Fatal(err)
	}

	records := readRecords(t, out, resultformat.FormatMsgPack)
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	session := records[0].Session
	for _, rec := range records {
		if rec.Session == "" || rec.Session != session {
			t.Fatalf("expected one session ID on every record, got %q", rec.Session)
		}
		if rec.Method != "realtime" {
			t.Errorf("expected realtime records, got %s", rec.Method)
		}
	}
}

func TestRunBatch(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	err := run(context.Background(), options{
		profile:  config.ProfileOralable,
		duration: 10 * time.Second,
		format:   "json",
		curve:    "cubic",
		output:   out,
		seed:     1,
		batch:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	records := readRecords(t, out, resultformat.FormatJSON)
	if len(records) != 1 || records[0].Method != "batch" {
		t.Fatalf("expected a single batch record, got %+v", records)
	}
	if records[0].HeartRate == 0 {
		t.Error("expected a heart rate from a 10 s recording")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "results.json")
	if err := run(ctx, options{profile: config.ProfileDemo, duration: time.Minute, output: out, every: 1}); err != nil {
		t.Fatal(err)
	}
	if records := readRecords(t, out, resultformat.FormatJSON); len(records) != 0 {
		t.Errorf("expected no records after cancellation, got %d", len(records))
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		opts options
	}{
		{name: "unknown profile", opts: options{profile: "wristband"}},
		{name: "unknown format", opts: options{profile: config.ProfileDemo, format: "xml"}},
		{name: "unknown curve", opts: options{profile: config.ProfileDemo, curve: "spline"}},
		{name: "unsupported source", opts: options{profile: config.ProfileDemo, config: "profiles.toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.output = filepath.Join(t.TempDir(), "out")
			if err := run(context.Background(), tt.opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadProfileFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yml")
	if err := os.WriteFile(path, []byte("profiles:\n  - name: bench\n    sample_rate: 25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := loadProfile(path, "bench")
	if err != nil {
		t.Fatal(err)
	}
	if p.SampleRate != 25 || p.SpO2WindowSize() != 125 {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestListProfiles(t *testing.T) {
	var buf bytes.Buffer
	if err := listProfiles(&buf, ""); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 presets, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "anr") {
		t.Errorf("expected profiles sorted by name, got %q", lines[0])
	}
}

func TestRunReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	tests := []struct {
		name  string
		batch bool
	}{
		{name: "batch", batch: true},
		{name: "streaming", batch: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), options{
				profile:  config.ProfileDemo,
				duration: 5 * time.Second,
				output:   "/dev/full",
				seed:     1,
				every:    1,
				batch:    tt.batch,
			})
			if err == nil {
				t.Fatal("expected the buffered write failure to be returned")
			}
		})
	}
}

func TestMigrateStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	provider, err := config.NewSQLiteProvider(path)
	if err != nil {
		t.Fatal(err)
	}
	provider.Close()

	tests := []struct {
		name    string
		source  string
		schema  string
		wantErr bool
	}{
		{name: "down to 1", source: path, schema: "1"},
		{name: "back to latest", source: path, schema: "latest"},
		{name: "yaml source", source: "profiles.yaml", schema: "1", wantErr: true},
		{name: "bad version", source: path, schema: "two", wantErr: true},
		{name: "negative version", source: path, schema: "-3", wantErr: true},
	}
	for _, tt := range tests {
		err := migrateStore(tt.source, tt.schema)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tt.name, tt.wantErr, err)
		}
	}
}
