package interrupt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/iabetor/voxout/internal/logger"
)

// Watcher 在 FileSource 之上用 fsnotify 监听标志文件目录，
// 标志文件被创建时立即通知等待方。信号的判定和消费仍由 FileSource 完成。
type Watcher struct {
	*FileSource

	watcher *fsnotify.Watcher
	notify  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher 开始监听 src 的标志文件目录，目录不存在时会创建。
func NewWatcher(src *FileSource) (*Watcher, error) {
	dir := src.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建 PTT 目录失败: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监听失败: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("监听目录 %s 失败: %w", dir, err)
	}

	w := &Watcher{
		FileSource: src,
		watcher:    fw,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Notify 实现 Notifier。
func (w *Watcher) Notify() <-chan struct{} { return w.notify }

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Clean(ev.Name)
			if name != w.togglePath && name != w.startPath {
				continue
			}
			logger.Debugf("[interrupt] 检测到标志文件 %s", filepath.Base(name))
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Debugf("[interrupt] 文件监听出错: %v", err)
		}
	}
}

// Close 停止监听。
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
