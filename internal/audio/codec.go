// Package audio converts between the capture device's native audio format
// and the wire format required by the remote realtime endpoint: 16-bit
// little-endian linear PCM, mono, at a fixed sample rate, framed as base64.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// WireRate is the fixed sample rate of the remote endpoint's audio protocol.
const WireRate = 24000

// Codec resamples and quantizes audio frames in both directions. A Codec is
// stateless and safe for concurrent use; each call allocates only its output
// buffers.
type Codec struct {
	wireRate int
}

// NewCodec returns a Codec targeting the standard wire rate.
func NewCodec() *Codec {
	return &Codec{wireRate: WireRate}
}

// Resample converts samples from sourceRate to targetRate using linear
// interpolation between neighboring samples. When the rates match, the input
// is returned unchanged.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(targetRate) / float64(sourceRate)
	outLen := int(float64(len(samples))*ratio + 0.5)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		srcIndex := float64(i) / ratio
		index := int(srcIndex)
		fraction := float32(srcIndex - float64(index))
		if index+1 < len(samples) {
			out[i] = samples[index]*(1-fraction) + samples[index+1]*fraction
		} else if index < len(samples) {
			out[i] = samples[index]
		}
	}
	return out
}

// Encode resamples a native-rate frame of normalized float samples to the
// wire rate, quantizes to 16-bit signed PCM with clamping, and returns the
// base64-framed payload for transport.
func (c *Codec) Encode(frame []float32, sourceRate int) (string, error) {
	if sourceRate <= 0 {
		return "", fmt.Errorf("invalid source sample rate %d", sourceRate)
	}
	resampled := Resample(frame, sourceRate, c.wireRate)
	return base64.StdEncoding.EncodeToString(QuantizePCM16(resampled)), nil
}

// QuantizePCM16 converts normalized float samples to raw 16-bit
// little-endian PCM bytes, clamping out-of-range values.
func QuantizePCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

// Decode unpacks a base64-framed 16-bit PCM payload into normalized float
// samples at the wire rate, ready for playback.
func (c *Codec) Decode(payload string) ([]float32, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return DecodePCM16(pcm), nil
}

// DecodePCM16 converts raw 16-bit little-endian PCM bytes to normalized
// float samples. A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// EncodePCM16 converts raw 16-bit little-endian PCM bytes at sourceRate into
// a wire-rate base64 payload. This is the path used when the capture side
// already delivers PCM16 (the WebSocket bridge) rather than float samples.
func (c *Codec) EncodePCM16(pcm []byte, sourceRate int) (string, error) {
	return c.Encode(DecodePCM16(pcm), sourceRate)
}

// WireRate reports the codec's fixed wire sample rate.
func (c *Codec) WireRate() int {
	return c.wireRate
}
