// Package wavfile writes streaming PCM to standard WAV files.
//
// A Writer is an audio.Sink: chunks are appended as they arrive and the
// RIFF header is finalized on Close. Parent directories of the target
// path are created as needed.
package wavfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/lyrebird-audio/lyrebird/pkg/audio"
)

const bitDepth = 16

// Writer streams 16-bit mono PCM into a WAV file.
type Writer struct {
	path       string
	sampleRate int
	file       *os.File
	enc        *wav.Encoder
	written    int
	closed     bool
}

// Create opens path for writing and prepares a WAV encoder at the given
// sample rate. Missing parent directories are created.
func Create(path string, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wavfile: invalid sample rate %d", sampleRate)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("wavfile: create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: create %s: %w", path, err)
	}
	return &Writer{
		path:       path,
		sampleRate: sampleRate,
		file:       f,
		enc:        wav.NewEncoder(f, sampleRate, bitDepth, 1, 1),
	}, nil
}

// WriteChunk appends a chunk of raw PCM to the file.
func (w *Writer) WriteChunk(pcm []byte) error {
	if w.closed {
		return fmt.Errorf("wavfile: write to closed file %s", w.path)
	}
	if len(pcm) == 0 {
		return nil
	}
	buf := &gaudio.IntBuffer{
		Data:           audio.Ints(pcm),
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: w.sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write %s: %w", w.path, err)
	}
	w.written += len(pcm)
	return nil
}

// Close finalizes the WAV header and closes the file. Calling Close more
// than once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("wavfile: finalize %s: %w", w.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("wavfile: close %s: %w", w.path, fileErr)
	}
	return nil
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// BytesWritten returns the number of PCM bytes written so far.
func (w *Writer) BytesWritten() int { return w.written }

// Info describes a decoded WAV file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []int
	Duration   time.Duration
}

// ReadFile decodes a whole WAV file. Intended for tools that inspect
// generated output; not suitable for very large files.
func ReadFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavfile: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode %s: %w", path, err)
	}
	info := &Info{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   int(dec.BitDepth),
		Samples:    buf.Data,
	}
	if info.SampleRate > 0 && info.Channels > 0 {
		samplesPerChannel := len(buf.Data) / info.Channels
		info.Duration = time.Duration(samplesPerChannel) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

// Ensure Writer implements audio.Sink at compile time.
var _ audio.Sink = (*Writer)(nil)
