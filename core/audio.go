package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian pulse-code modulation.
	ULAW                            // G.711 mu-law encoding.
	ALAW                            // G.711 A-law encoding.
)

type AudioChunk struct {
	Data       *[]byte             // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time           // When the chunk was produced or received.
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 || ac.Data == nil {
		return 0.0
	}
	bytesPerSample := 2 // PCM16
	if ac.Format == ULAW || ac.Format == ALAW {
		bytesPerSample = 1
	}
	totalSamples := len(*ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}
