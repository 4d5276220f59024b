package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnsupportedFormat 文件格式无法解码。
var ErrUnsupportedFormat = errors.New("不支持的音频格式")

// Clip 是解码后的一段完整音频，样本为交错排列的 float32。
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames 返回帧数。
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// DecodeFile 按扩展名解码 wav/aiff/mp3/ogg 文件。mp3 会被混成单声道。
func DecodeFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer f.Close()

	var clip *Clip
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		clip, err = decodeWAV(f)
	case ".aif", ".aiff":
		clip, err = decodeAIFF(f)
	case ".mp3":
		clip, err = decodeMP3(f)
	case ".ogg":
		clip, err = decodeOgg(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("解码 %s 失败: %w", filepath.Base(path), err)
	}
	return clip, nil
}

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: 不是有效的 WAV 文件", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return intBufferClip(buf, int(dec.BitDepth))
}

func decodeAIFF(r io.ReadSeeker) (*Clip, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: 不是有效的 AIFF 文件", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return intBufferClip(buf, int(dec.BitDepth))
}

// intBufferClip 按位深把 go-audio 的整数样本归一化。
func intBufferClip(buf *goaudio.IntBuffer, bitDepth int) (*Clip, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: 缺少格式信息", ErrUnsupportedFormat)
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return &Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// decodeMP3 go-mp3 总是输出 16 位双声道小端 PCM。
func decodeMP3(r io.Reader) (*Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: mp3 中没有音频帧", ErrUnsupportedFormat)
	}
	return &Clip{
		Samples:    DownmixInt16(BytesToInt16(data), 2),
		SampleRate: dec.SampleRate(),
		Channels:   1,
	}, nil
}

func decodeOgg(r io.Reader) (*Clip, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Clip{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, nil
}

// WriteWAV 把交错 float32 样本写成 16 位 PCM WAV 文件。
func WriteWAV(path string, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: 采样率 %d, 声道数 %d", ErrInvalidFormat, sampleRate, channels)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 WAV 文件失败: %w", err)
	}
	defer f.Close()

	pcm := Float32ToInt16(samples)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("写入 WAV 失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("关闭 WAV 编码器失败: %w", err)
	}
	return nil
}
