package main

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// barProgress shows sync progress with a bar per podcast
type barProgress struct {
	out       io.Writer
	container *mpb.Progress
	bar       *mpb.Bar
}

func newBarProgress(out io.Writer) *barProgress {
	return &barProgress{out: out}
}

func (b *barProgress) Start(total int, title string) {
	b.container = mpb.New(mpb.WithOutput(b.out), mpb.WithRefreshRate(150*time.Millisecond))
	b.bar = b.container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(title+" ", decor.WC{W: len(title) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("(%d/%d)", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace), "done"),
		),
	)
}

func (b *barProgress) Increment() {
	if b.bar != nil {
		b.bar.Increment()
	}
}

func (b *barProgress) Done() {
	if b.container == nil {
		return
	}
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.container.Wait()
	b.container, b.bar = nil, nil
}
