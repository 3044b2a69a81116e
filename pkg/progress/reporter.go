// Package progress 为批处理命令提供进度反馈。
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Reporter 报告一个批处理阶段的进度。实现需要是并发安全的，因为检测层可以并行运行。
type Reporter interface {
	Start(total int, description string)
	Add(n int)
	Finish()
}

// NewReporter 在 CI 环境下返回逐行输出的 LineReporter，否则返回终端进度条。
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return NewLineReporter(os.Stderr, 1000)
	}
	return &TerminalReporter{}
}

// Nop 不输出任何内容，用于测试和嵌入式调用。
type Nop struct{}

func (Nop) Start(int, string) {}
func (Nop) Add(int)           {}
func (Nop) Finish()           {}

// TerminalReporter 在终端显示进度条。
type TerminalReporter struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Add(n)
	}
}

func (r *TerminalReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// LineReporter 每处理 every 个条目输出一行，适合 CI 日志。
type LineReporter struct {
	mu          sync.Mutex
	w           io.Writer
	every       int
	total       int
	current     int
	description string
}

// NewLineReporter 创建一个逐行输出的 Reporter。
func NewLineReporter(w io.Writer, every int) *LineReporter {
	if every <= 0 {
		every = 1
	}
	return &LineReporter{w: w, every: every}
}

func (r *LineReporter) Start(total int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total, r.current, r.description = total, 0, description
	fmt.Fprintf(r.w, "%s: starting (%d items)\n", description, total)
}

func (r *LineReporter) Add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := r.current / r.every
	r.current += n
	if r.current/r.every != before {
		fmt.Fprintf(r.w, "%s: [%d/%d]\n", r.description, r.current, r.total)
	}
}

func (r *LineReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: done (%d/%d)\n", r.description, r.current, r.total)
}
