package audio

import "sync/atomic"

// chunk 是队列中的一项：一段交错样本，或表示结束的 end 标记。
type chunk struct {
	data   []float32
	frames int
	end    bool
}

// splitChunks 把交错样本按 frames 帧切块，最后追加一个 end 标记。
// N 帧、块大小 S 时得到 ceil(N/S) 个音频块，最后一块长度在 [1, S]。
func splitChunks(samples []float32, channels, frames int) []chunk {
	total := len(samples) / channels
	n := (total + frames - 1) / frames
	out := make([]chunk, 0, n+1)
	for start := 0; start < total; start += frames {
		end := min(start+frames, total)
		out = append(out, chunk{
			data:   samples[start*channels : end*channels],
			frames: end - start,
		})
	}
	return append(out, chunk{end: true})
}

// chunkQueue 是预先填满的单消费者队列：play 在流启动前写完全部块，
// 之后只有音频回调出队。出队不加锁、不阻塞。
type chunkQueue struct {
	items []chunk
	next  atomic.Int64
}

func newChunkQueue(items []chunk) *chunkQueue {
	return &chunkQueue{items: items}
}

// pop 非阻塞出队，队列为空时返回 false。
func (q *chunkQueue) pop() (chunk, bool) {
	i := q.next.Add(1) - 1
	if i >= int64(len(q.items)) {
		q.next.Store(int64(len(q.items)))
		return chunk{}, false
	}
	return q.items[i], true
}

// drain 丢弃剩余的块。只能在流确认停止后调用。
func (q *chunkQueue) drain() int {
	i := q.next.Swap(int64(len(q.items)))
	if rest := int64(len(q.items)) - i; rest > 0 {
		return int(rest)
	}
	return 0
}

func (q *chunkQueue) len() int {
	rest := int64(len(q.items)) - q.next.Load()
	if rest < 0 {
		return 0
	}
	return int(rest)
}
