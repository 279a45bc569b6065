package audiocheck

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// Info describes a parsed WAV buffer.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration

	// RMS is the normalized signal level in [0,1], computed for 16-bit PCM
	// data. Zero for other encodings.
	RMS float64
}

// Parse reads the RIFF/WAVE header and chunks of a captured audio buffer.
// It accepts PCM and IEEE-float encodings and tolerates extra chunks such
// as LIST or fact.
func Parse(data []byte) (Info, error) {
	if len(data) < 44 {
		return Info{}, fmt.Errorf("wav: buffer too small (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, errors.New("wav: missing RIFF/WAVE header")
	}

	var (
		info      Info
		format    uint16
		byteRate  uint32
		dataChunk []byte
		haveFmt   bool
		haveData  bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return Info{}, fmt.Errorf("wav: chunk %q overruns buffer", id)
		}
		chunk := data[off : off+size]

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, errors.New("wav: fmt chunk too small")
			}
			format = binary.LittleEndian.Uint16(chunk[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			byteRate = binary.LittleEndian.Uint32(chunk[8:12])
			info.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			haveFmt = true
		case "data":
			dataChunk = chunk
			haveData = true
		}

		off += size
		// Chunks are word aligned.
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return Info{}, errors.New("wav: missing fmt chunk")
	}
	if !haveData {
		return Info{}, errors.New("wav: missing data chunk")
	}
	if format != formatPCM && format != formatIEEEFloat {
		return Info{}, fmt.Errorf("wav: unsupported audio format %d", format)
	}
	if info.SampleRate <= 0 || info.Channels <= 0 || byteRate == 0 {
		return Info{}, errors.New("wav: invalid fmt parameters")
	}

	info.Duration = time.Duration(float64(len(dataChunk)) / float64(byteRate) * float64(time.Second))
	if format == formatPCM && info.BitsPerSample == 16 {
		info.RMS = rms16(dataChunk)
	}
	return info, nil
}

// rms16 computes the normalized root-mean-square level of little-endian
// 16-bit PCM samples.
func rms16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
