package convert

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

// progress draws a bar sized by the first completed task.
type progress struct {
	w       io.Writer
	enabled bool

	once sync.Once
	bar  *progressbar.ProgressBar
}

func newProgress(w io.Writer, enabled bool) *progress {
	return &progress{w: w, enabled: enabled && isTerminal(w)}
}

func (p *progress) step(task *tree.Task) {
	if !p.enabled {
		return
	}
	p.once.Do(func() {
		p.bar = progressbar.NewOptions(task.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	})
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
