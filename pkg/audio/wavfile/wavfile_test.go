package wavfile_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lyrebird-audio/lyrebird/pkg/audio/wavfile"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := wavfile.Create(path, 24000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	chunks := [][]int16{
		{100, -200, 300},
		{32767, -32768},
		{0, 1, -1},
	}
	var want []int16
	for _, c := range chunks {
		if err := w.WriteChunk(samplesToBytes(c)); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
		want = append(want, c...)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, wantBytes := w.BytesWritten(), len(want)*2; got != wantBytes {
		t.Errorf("BytesWritten: got %d, want %d", got, wantBytes)
	}

	info, err := wavfile.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if info.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want 24000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("channels: got %d, want 1", info.Channels)
	}
	if info.BitDepth != 16 {
		t.Errorf("bit depth: got %d, want 16", info.BitDepth)
	}
	if len(info.Samples) != len(want) {
		t.Fatalf("sample count: got %d, want %d", len(info.Samples), len(want))
	}
	for i := range want {
		if info.Samples[i] != int(want[i]) {
			t.Errorf("sample %d: got %d, want %d", i, info.Samples[i], want[i])
		}
	}
}

func TestCreate_MakesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "out.wav")

	w, err := wavfile.Create(path, 24000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.WriteChunk(samplesToBytes([]int16{1, 2, 3})); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestCreate_InvalidSampleRate(t *testing.T) {
	if _, err := wavfile.Create(filepath.Join(t.TempDir(), "out.wav"), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestClose_Idempotent(t *testing.T) {
	w, err := wavfile.Create(filepath.Join(t.TempDir(), "out.wav"), 24000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.WriteChunk(samplesToBytes([]int16{5, 6})); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := w.WriteChunk(samplesToBytes([]int16{7})); err == nil {
		t.Error("expected error writing after Close")
	}
}

func TestDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := wavfile.Create(path, 24000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 24000 samples = one second at 24kHz.
	if err := w.WriteChunk(make([]byte, 48000)); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := wavfile.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if info.Duration != time.Second {
		t.Errorf("duration: got %v, want %v", info.Duration, time.Second)
	}
}

func TestReadFile_NotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wavfile.ReadFile(path); err == nil {
		t.Error("expected error for non-WAV content")
	}
}
