// Package sink implements the device side of the pipeline's sink/source
// contract (spec.md section 6): something that can Write a frame and
// report its own output latency. WAVSink is the one concrete
// implementation the receiver core ships with, for capture-to-disk use
// and for exercising the pipeline without real audio hardware.
//
// No WAV-writing library appears anywhere in the example pack (see
// DESIGN.md), so the header is hand-encoded with encoding/binary, the
// same way pkg/packet/codec.go hand-encodes the FEC source payload ID
// rather than reaching for a framing library that doesn't exist for it.
package sink

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"github.com/arzzra/audiopipe/pkg/frame"
)

// WAVSink writes every frame it receives as 16-bit PCM to a WAV file,
// patching the RIFF/data chunk sizes on Close. Write appends each frame
// with one direct os.File write; there is no userspace buffering.
type WAVSink struct {
	f             *os.File
	numChannels   int
	sampleRate    uint32
	bytesWritten  uint32
	headerWritten bool

	lastCapture time.Time
	now         func() time.Time
}

// Create opens path and writes a placeholder WAV header (patched on
// Close once the final data length is known), matching numChannels/
// sampleRate.
func Create(path string, numChannels int, sampleRate uint32) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &WAVSink{f: f, numChannels: numChannels, sampleRate: sampleRate, now: time.Now}
	if err := s.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	s.headerWritten = true
	return s, nil
}

func (s *WAVSink) writeHeader(dataLen uint32) error {
	const bitsPerSample = 16
	blockAlign := uint16(s.numChannels * bitsPerSample / 8)
	byteRate := s.sampleRate * uint32(blockAlign)

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataLen)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(s.numChannels))
	binary.LittleEndian.PutUint32(buf[24:28], s.sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataLen)
	_, err := s.f.Write(buf)
	return err
}

// Write implements frame.Sink: appends f's samples as little-endian
// int16 PCM.
func (s *WAVSink) Write(f *frame.Frame) error {
	if f.HasCaptureTime {
		s.lastCapture = f.CaptureTimestamp
	}

	out := make([]byte, len(f.Samples)*2)
	for i, v := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], floatToPCM16(v))
	}
	if _, err := s.f.Write(out); err != nil {
		return err
	}
	s.bytesWritten += uint32(len(out))
	return nil
}

// Latency reports how far behind wall-clock the most recently written
// frame's capture time was, the sink half of spec.md section 6's
// latency() contract.
func (s *WAVSink) Latency() time.Duration {
	if s.lastCapture.IsZero() {
		return 0
	}
	return s.now().Sub(s.lastCapture)
}

// Close patches the RIFF/data chunk sizes with the final byte count and
// closes the underlying file.
func (s *WAVSink) Close() error {
	if err := s.writeHeader(s.bytesWritten); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func floatToPCM16(v float32) uint16 {
	if v > 1.0 {
		v = 1.0
	}
	if v < -1.0 {
		v = -1.0
	}
	return uint16(int16(math.Round(float64(v) * 32767)))
}
