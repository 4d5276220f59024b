package interrupt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// 默认的 PTT 标志文件。
const (
	DefaultDir        = "~/.voicemode"
	DefaultToggleFile = "push-to-talk-toggle"
	DefaultStartFile  = "push-to-talk-start"
)

// FileSource 通过标志文件是否存在来表达 PTT 信号。
type FileSource struct {
	togglePath string
	startPath  string
}

// NewFileSource 创建基于标志文件的信号源。dir 支持 ~ 开头。
func NewFileSource(dir, toggleName, startName string) (*FileSource, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if toggleName == "" {
		toggleName = DefaultToggleFile
	}
	if startName == "" {
		startName = DefaultStartFile
	}
	expanded, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	return &FileSource{
		togglePath: filepath.Join(expanded, toggleName),
		startPath:  filepath.Join(expanded, startName),
	}, nil
}

// TogglePath 返回 toggle 标志文件路径。
func (s *FileSource) TogglePath() string { return s.togglePath }

// StartPath 返回 start 标志文件路径。
func (s *FileSource) StartPath() string { return s.startPath }

// Dir 返回标志文件所在目录。
func (s *FileSource) Dir() string { return filepath.Dir(s.togglePath) }

func (s *FileSource) ToggleRequested() (bool, error) { return exists(s.togglePath) }

func (s *FileSource) StartRequested() (bool, error) { return exists(s.startPath) }

// ConsumeToggle 删除 toggle 标志文件。文件已被别人删除时不算错误。
func (s *FileSource) ConsumeToggle() error {
	if err := os.Remove(s.togglePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除 toggle 标志文件失败: %w", err)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// expandHome 展开 ~ 开头的路径，Go 不会自动处理。
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户主目录失败: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
