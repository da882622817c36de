package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

const wavHeaderSize = 44

// WavWriter authors a canonical RIFF/WAVE file for 16-bit PCM. The header is
// written as a zeroed placeholder on creation and patched with the real sizes
// in Finish; a file abandoned before Finish is deliberately not a valid WAV.
type WavWriter struct {
	f          *os.File
	path       string
	sampleRate int
	channels   int
	dataSize   uint32
	closed     bool
}

// NewWavWriter truncates any existing file at path and writes the placeholder
// header.
func NewWavWriter(path string, sampleRate, channels int) (*WavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	w := &WavWriter{f: f, path: path, sampleRate: sampleRate, channels: channels}
	if _, err := f.Write(make([]byte, wavHeaderSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write wav header placeholder: %w", err)
	}
	return w, nil
}

// Append writes samples as little-endian int16 bytes and advances the data
// size counter.
func (w *WavWriter) Append(samples []int16) error {
	if w.closed {
		return fmt.Errorf("wav writer already finished")
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	w.dataSize += uint32(len(buf))
	return nil
}

// DataSize returns the number of PCM payload bytes written so far.
func (w *WavWriter) DataSize() uint32 {
	return w.dataSize
}

// Finish patches the header with the final sizes, flushes and closes the
// file. It returns the file path.
func (w *WavWriter) Finish() (string, error) {
	if w.closed {
		return w.path, nil
	}
	w.closed = true

	header := make([]byte, wavHeaderSize)
	byteRate := w.sampleRate * w.channels * 2
	blockAlign := w.channels * 2

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+w.dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], w.dataSize)

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return "", fmt.Errorf("sync wav data: %w", err)
	}
	if _, err := w.f.WriteAt(header, 0); err != nil {
		w.f.Close()
		return "", fmt.Errorf("patch wav header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return "", fmt.Errorf("sync wav header: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return "", fmt.Errorf("close wav file: %w", err)
	}
	return w.path, nil
}

// Abort closes and removes the partially written file. Used on fatal
// session errors.
func (w *WavWriter) Abort() {
	if !w.closed {
		w.closed = true
		w.f.Close()
	}
	os.Remove(w.path)
}

// WriteWavFile writes samples as a complete 16-bit PCM WAV in one shot.
// Used for scratch files handed to the recognizer.
func WriteWavFile(path string, samples []int16, sampleRate, channels int) error {
	w, err := NewWavWriter(path, sampleRate, channels)
	if err != nil {
		return err
	}
	if err := w.Append(samples); err != nil {
		w.Abort()
		return err
	}
	_, err = w.Finish()
	return err
}
