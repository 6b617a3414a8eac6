package audio

// EncodeFloat32 converts normalised float32 samples in [-1.0, 1.0] to
// little-endian signed 16-bit PCM. Samples are scaled by 32768 and truncated;
// out-of-range values are clamped at the int16 boundary, so a full-scale
// +1.0 sample encodes to 32767 rather than wrapping around.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodeInt16 converts little-endian signed 16-bit PCM bytes into int16
// samples. A trailing odd byte is ignored.
func DecodeInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/BytesPerSample)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
