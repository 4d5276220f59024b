package audio

import (
	"encoding/binary"
	"math"
)

// Int16ToFloat32 将 PCM int16 样本转换为 [-1.0, 1.0] 范围的 float32。
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / math.MaxInt16
	}
	return out
}

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = clampInt16(s)
	}
	return out
}

func clampInt16(s float32) int16 {
	// 钳位到 [-1.0, 1.0]
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * math.MaxInt16)
}

// BytesToInt16 将小端字节切片转换为 int16 样本。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// PutInt16LE 把 float32 样本钳位后以小端 int16 写入 dst，不分配内存。
// dst 至少要有 2*len(src) 字节，多出的部分填零。
func PutInt16LE(dst []byte, src []float32) {
	for i, s := range src {
		v := clampInt16(s)
		dst[2*i] = byte(v)
		dst[2*i+1] = byte(v >> 8)
	}
	clear(dst[2*len(src):])
}

// PutFloat32LE 把 float32 样本以小端 IEEE 754 写入 dst，不分配内存。
func PutFloat32LE(dst []byte, src []float32) {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(s))
	}
	clear(dst[4*len(src):])
}

// DownmixInt16 把交错的多声道 int16 样本平均为单声道 float32。
func DownmixInt16(in []int16, channels int) []float32 {
	if channels <= 1 {
		return Int16ToFloat32(in)
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(in[i*channels+c])
		}
		out[i] = sum / float32(channels) / math.MaxInt16
	}
	return out
}
