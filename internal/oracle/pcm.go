package oracle

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Sample rates of the live audio streams.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
)

// InputMIMEType labels outbound microphone frames.
const InputMIMEType = "audio/pcm;rate=16000"

// FrameSamples is the number of samples captured per outbound frame.
const FrameSamples = 4096

// EncodePCM16 converts float samples in [-1,1] to little-endian 16-bit PCM.
// Out-of-range samples are clipped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := float64(s) * 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts little-endian 16-bit PCM to float samples in [-1,1).
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd PCM length: %d bytes", len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return out, nil
}

// EncodeFrame base64-encodes raw PCM for the wire.
func EncodeFrame(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeFrame reverses EncodeFrame.
func DecodeFrame(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// SamplesDuration returns the playback length of n mono samples at rate.
func SamplesDuration(n, rate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(rate)
}
