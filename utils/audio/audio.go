package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"vocalis/core"

	"github.com/zaf/g711"
)

// Buffer pools for frequently used operations
var (
	// Pool for WAV header buffers (typically 44-46 bytes)
	wavHeaderPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 64))
		},
	}

	// Pool for temporary buffers used in channel conversion
	channelConvPool = sync.Pool{
		New: func() interface{} {
			// Start with 4KB buffer, will grow if needed
			return make([]byte, 0, 4096)
		},
	}
)

// getWavHeaderBuffer retrieves a buffer from the WAV header pool
func getWavHeaderBuffer() *bytes.Buffer {
	return wavHeaderPool.Get().(*bytes.Buffer)
}

// putWavHeaderBuffer returns a buffer to the WAV header pool
func putWavHeaderBuffer(buf *bytes.Buffer) {
	buf.Reset()
	wavHeaderPool.Put(buf)
}

// getChannelConvBuffer retrieves a buffer from the channel conversion pool
func getChannelConvBuffer(capacity int) []byte {
	buf := channelConvPool.Get().([]byte)
	if cap(buf) < capacity {
		return make([]byte, capacity)
	}
	return buf[:0]
}

// putChannelConvBuffer returns a buffer to the channel conversion pool
func putChannelConvBuffer(buf []byte) {
	if cap(buf) <= 32768 { // Don't pool very large buffers
		channelConvPool.Put(buf)
	}
}

// PCMToULaw converts a 16-bit PCM sample to 8-bit mu-law using ITU-T G.711 standard
func PCMToULaw(sample int16) byte {
	return g711.EncodeUlawFrame(sample)
}

// ULawToPCM converts an 8-bit mu-law byte to 16-bit PCM using ITU-T G.711 standard
func ULawToPCM(u byte) int16 {
	return g711.DecodeUlawFrame(u)
}

// PCMBytesToULaw converts PCM bytes to mu-law
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// ULawBytesToPCM converts mu-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// PCMToALaw converts a 16-bit PCM sample to 8-bit A-law using ITU-T G.711 standard
func PCMToALaw(sample int16) byte {
	return g711.EncodeAlawFrame(sample)
}

// ALawToPCM converts an 8-bit A-law byte to 16-bit PCM using ITU-T G.711 standard
func ALawToPCM(a byte) int16 {
	return g711.DecodeAlawFrame(a)
}

// PCMBytesToALaw converts PCM bytes to A-law
func PCMBytesToALaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeAlaw(pcm), nil
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian)
// Supports mono or stereo with buffer pooling
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	buf := getWavHeaderBuffer()
	defer putWavHeaderBuffer(buf)

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := 36 + dataSize // 36 = WAV header size

	// Write RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	// Write fmt sub-chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	// Write data sub-chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)

	return result, nil
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm)%2 != 0 {
		return errors.New("PCM data must have even length (16-bit samples)")
	}
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if numChannels <= 0 {
		return errors.New("invalid number of channels")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// GetPCMSampleCount returns number of 16-bit samples in PCM data
func GetPCMSampleCount(pcm []byte) int {
	if len(pcm)%2 != 0 {
		return 0
	}
	return len(pcm) / 2
}

// GetPCMDurationSeconds returns duration in seconds
func GetPCMDurationSeconds(pcm []byte, numChannels, sampleRate int) (float64, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return 0, err
	}
	if sampleRate <= 0 {
		return 0, errors.New("invalid sample rate")
	}

	sampleCount := GetPCMSampleCount(pcm)
	frameCount := sampleCount / numChannels
	return float64(frameCount) / float64(sampleRate), nil
}

// StripWAVHeaderIfPresent returns raw PCM bytes if input starts with a RIFF/WAVE header.
// If the input is not a WAV file, it returns the input unchanged.
// Only extracts the "data" chunk and ignores other subchunks.
func StripWAVHeaderIfPresent(chunk []byte) ([]byte, error) {
	// Minimum RIFF header size: 12 bytes ("RIFF" + size + "WAVE")
	if len(chunk) < 12 {
		return chunk, nil
	}
	if !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return chunk, nil
	}

	i := 12
	for i+8 <= len(chunk) {
		chunkID := string(chunk[i : i+4])
		chunkSize := binary.LittleEndian.Uint32(chunk[i+4 : i+8])
		next := i + 8 + int(chunkSize)

		if chunkID == "data" {
			if next > len(chunk) {
				return nil, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			return chunk[i+8 : next], nil
		}

		// Account for padding to even boundary
		if chunkSize%2 != 0 {
			next++
		}
		if next > len(chunk) {
			break
		}
		i = next
	}

	return nil, errors.New("invalid WAV: data chunk not found")
}

// ConvertAudioChunk converts audio data between formats, sample rates, and
// channel counts. PCM16 is the intermediate format for every path.
func ConvertAudioChunk(
	input core.AudioChunk,
	targetFormat core.AudioEncodingFormat,
	targetChannels int,
	targetSampleRate int,
) (core.AudioChunk, error) {
	needToConvertFormat := input.Format != targetFormat
	needToConvertSampleRate := input.SampleRate != targetSampleRate
	needToConvertChannels := input.Channels != targetChannels

	if !needToConvertFormat && !needToConvertSampleRate && !needToConvertChannels {
		return input, nil
	}

	if input.Format != core.PCM {
		pcmBytes, err := convertToPCM(input)
		if err != nil {
			return core.AudioChunk{}, err
		}
		input.Data = &pcmBytes
		input.Format = core.PCM
	}

	if needToConvertChannels {
		pcmBytes, err := convertChannels(*input.Data, input.Channels, targetChannels)
		if err != nil {
			return core.AudioChunk{}, err
		}
		input.Data = &pcmBytes
		input.Channels = targetChannels
	}

	if needToConvertSampleRate {
		resampledBytes, err := ResamplePCMBytes(*input.Data, input.Channels, input.SampleRate, targetSampleRate)
		if err != nil {
			return core.AudioChunk{}, err
		}
		input.Data = &resampledBytes
		input.SampleRate = targetSampleRate
	}

	if needToConvertFormat && targetFormat != core.PCM {
		convertedBytes, err := convertFromPCM(*input.Data, targetFormat)
		if err != nil {
			return core.AudioChunk{}, err
		}
		input.Data = &convertedBytes
		input.Format = targetFormat
	}

	return input, nil
}

// convertToPCM converts various audio formats to PCM
func convertToPCM(input core.AudioChunk) ([]byte, error) {
	switch input.Format {
	case core.ULAW:
		return ULawBytesToPCM(*input.Data), nil
	case core.ALAW:
		return ALawBytesToPCM(*input.Data), nil
	default:
		return nil, errors.New("unsupported format for PCM conversion")
	}
}

// convertFromPCM converts PCM to target format
func convertFromPCM(pcm []byte, targetFormat core.AudioEncodingFormat) ([]byte, error) {
	switch targetFormat {
	case core.ULAW:
		return PCMBytesToULaw(pcm)
	case core.ALAW:
		return PCMBytesToALaw(pcm)
	default:
		return nil, errors.New("unsupported target format")
	}
}

// ResamplePCMBytes converts interleaved PCM16 between sample rates using
// linear interpolation. Good enough for the 16k/24k hops between the
// transcription and synthesis services.
func ResamplePCMBytes(pcm []byte, channels, fromRate, toRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, channels); err != nil {
		return nil, err
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.New("sample rates must be positive")
	}
	if fromRate == toRate {
		return pcm, nil
	}

	inFrames := len(pcm) / (2 * channels)
	outFrames := int(int64(inFrames) * int64(toRate) / int64(fromRate))
	if outFrames == 0 {
		return []byte{}, nil
	}

	out := make([]byte, outFrames*2*channels)
	ratio := float64(fromRate) / float64(toRate)

	for frame := 0; frame < outFrames; frame++ {
		srcPos := float64(frame) * ratio
		i0 := int(srcPos)
		if i0 >= inFrames-1 {
			i0 = inFrames - 1
		}
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = inFrames - 1
		}
		frac := srcPos - float64(i0)

		for ch := 0; ch < channels; ch++ {
			s0 := int16(binary.LittleEndian.Uint16(pcm[(i0*channels+ch)*2:]))
			s1 := int16(binary.LittleEndian.Uint16(pcm[(i1*channels+ch)*2:]))
			sample := int16(float64(s0) + (float64(s1)-float64(s0))*frac)
			binary.LittleEndian.PutUint16(out[(frame*channels+ch)*2:], uint16(sample))
		}
	}

	return out, nil
}

// convertChannels converts between mono and stereo PCM with buffer pooling
func convertChannels(pcm []byte, fromChannels, toChannels int) ([]byte, error) {
	if fromChannels == toChannels {
		return pcm, nil
	}
	if fromChannels == 1 && toChannels == 2 {
		return monoToStereo(pcm), nil
	}
	if fromChannels == 2 && toChannels == 1 {
		return stereoToMono(pcm), nil
	}
	return nil, fmt.Errorf("unsupported channel conversion: %d to %d", fromChannels, toChannels)
}

// monoToStereo converts mono PCM to stereo by duplicating channels with buffer pooling
func monoToStereo(monoPCM []byte) []byte {
	samples := len(monoPCM) / 2
	resultSize := samples * 4

	result := getChannelConvBuffer(resultSize)
	defer putChannelConvBuffer(result)

	if cap(result) < resultSize {
		result = make([]byte, resultSize)
	} else {
		result = result[:resultSize]
	}

	for i := 0; i < samples; i++ {
		// Copy left channel
		result[i*4] = monoPCM[i*2]
		result[i*4+1] = monoPCM[i*2+1]
		// Copy right channel (same as left)
		result[i*4+2] = monoPCM[i*2]
		result[i*4+3] = monoPCM[i*2+1]
	}

	// Make a copy to return (can't return pooled buffer directly)
	finalResult := make([]byte, resultSize)
	copy(finalResult, result)
	return finalResult
}

// stereoToMono converts stereo PCM to mono by averaging channels with buffer pooling
func stereoToMono(stereoPCM []byte) []byte {
	samples := len(stereoPCM) / 4
	resultSize := samples * 2

	result := getChannelConvBuffer(resultSize)
	defer putChannelConvBuffer(result)

	if cap(result) < resultSize {
		result = make([]byte, resultSize)
	} else {
		result = result[:resultSize]
	}

	for i := 0; i < samples; i++ {
		left := int16(binary.LittleEndian.Uint16(stereoPCM[i*4 : i*4+2]))
		right := int16(binary.LittleEndian.Uint16(stereoPCM[i*4+2 : i*4+4]))

		mono := (int(left) + int(right)) / 2

		binary.LittleEndian.PutUint16(result[i*2:i*2+2], uint16(mono))
	}

	finalResult := make([]byte, resultSize)
	copy(finalResult, result)
	return finalResult
}
