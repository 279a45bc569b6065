package testutil

import (
	"bytes"
	"encoding/binary"
)

// WAVClip renders a mono 16-bit PCM WAV buffer at the given sample rate,
// with every sample set to amplitude, for n samples. Tests use it wherever
// a run needs plausible audio input.
func WAVClip(sampleRate, samples int, amplitude int16) []byte {
	var pcm bytes.Buffer
	for i := 0; i < samples; i++ {
		_ = binary.Write(&pcm, binary.LittleEndian, amplitude)
	}

	var buf bytes.Buffer
	byteRate := sampleRate * 2
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+pcm.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(pcm.Len()))
	buf.Write(pcm.Bytes())
	return buf.Bytes()
}
