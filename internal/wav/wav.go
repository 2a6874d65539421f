package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// PCM layout of a waveform
type Spec struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// 24 kHz mono 16-bit, the layout the speech endpoint returns
func DefaultSpec() Spec {
	return Spec{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

func (s Spec) blockAlign() int {
	return s.Channels * s.BitsPerSample / 8
}

// parsed header of an existing file
type Info struct {
	Spec      Spec
	DataBytes int
	Samples   int
	Duration  time.Duration
}

// Encode writes pcm as a RIFF/WAVE stream.
func Encode(w io.Writer, spec Spec, pcm []byte) error {
	blockAlign := spec.blockAlign()
	byteRate := spec.SampleRate * blockAlign

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(spec.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(spec.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(spec.BitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WriteFile encodes pcm into a WAV file, creating parent directories.
func WriteFile(path string, spec Spec, pcm []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	if err := Encode(f, spec, pcm); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Silence returns zeroed PCM of the given duration, sample-aligned.
func Silence(spec Spec, d time.Duration) []byte {
	frames := int(int64(d) * int64(spec.SampleRate) / int64(time.Second))
	if frames < 0 {
		frames = 0
	}
	return make([]byte, frames*spec.blockAlign())
}

// Samples counts whole sample frames in a PCM buffer.
func Samples(spec Spec, pcm []byte) int {
	return len(pcm) / spec.blockAlign()
}

// ConcatPCM joins PCM chunks into one buffer. Chunks share a spec, so the
// result's sample count is the sum of the inputs'.
func ConcatPCM(chunks ...[]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}

	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}

// ReadInfo parses the header of a WAV file without loading its payload.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return Info{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("not a wav file: %s", path)
	}

	var info Info
	haveFmt := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Info{}, fmt.Errorf("read chunk header: %w", err)
		}

		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			var body [16]byte
			if _, err := io.ReadFull(f, body[:]); err != nil {
				return Info{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			info.Spec = Spec{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFmt = true
			if size > 16 {
				if _, err := f.Seek(size-16, io.SeekCurrent); err != nil {
					return Info{}, fmt.Errorf("skip fmt extension: %w", err)
				}
			}
		case "data":
			info.DataBytes = int(size)
			if _, err := f.Seek(size, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("skip data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(size, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}

		// chunks are word-aligned
		if size%2 == 1 {
			if _, err := f.Seek(1, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("skip chunk padding: %w", err)
			}
		}
	}

	if !haveFmt {
		return Info{}, fmt.Errorf("wav file missing fmt chunk: %s", path)
	}

	if align := info.Spec.blockAlign(); align > 0 {
		info.Samples = info.DataBytes / align
		if info.Spec.SampleRate > 0 {
			info.Duration = time.Duration(info.Samples) *
				time.Second / time.Duration(info.Spec.SampleRate)
		}
	}

	return info, nil
}
