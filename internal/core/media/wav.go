package media

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// WAV format tags
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// decodeWAV reads a PCM or 32-bit float WAV stream and returns mono samples at the source rate.
func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(decoder.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		return nil, 0, errors.New("WAV file has no channels")
	}

	sampleRate := int(decoder.SampleRate)
	if sampleRate <= 0 {
		return nil, 0, errors.New("WAV file has no sample rate")
	}

	bitDepth := int(decoder.BitDepth)
	interleaved := make([]float32, len(buf.Data))

	switch decoder.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
	case wavFormatIEEEFloat:
		if bitDepth != 32 {
			return nil, 0, fmt.Errorf("unsupported float WAV bit depth %d", bitDepth)
		}
		// the decoder hands back the raw float bits as ints
		for i, v := range buf.Data {
			interleaved[i] = math.Float32frombits(uint32(int32(v)))
		}
		return downmix(interleaved, channels), sampleRate, nil
	default:
		return nil, 0, fmt.Errorf("unsupported WAV format %d", decoder.WavAudioFormat)
	}

	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			interleaved[i] = float32(v-128) / 128.0
		}
	case 16, 24, 32:
		maxVal := float32(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			interleaved[i] = float32(v) / maxVal
		}
	default:
		return nil, 0, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}

	return downmix(interleaved, channels), sampleRate, nil
}

// EncodeWAV encodes normalized audio as an in-memory 16-bit mono WAV file.
func EncodeWAV(a *Audio) ([]byte, error) {
	if !a.Valid() {
		return nil, errors.New("audio is empty or released")
	}

	wavFile := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(wavFile, a.SampleRate, 16, 1, 1)

	intBuf := &audio.IntBuffer{
		Data:           make([]int, len(a.Samples)),
		Format:         &audio.Format{SampleRate: a.SampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	for i, s := range a.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		intBuf.Data[i] = int(s * 32767)
	}

	if err := encoder.Write(intBuf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	data, err := io.ReadAll(wavFile.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return data, nil
}
