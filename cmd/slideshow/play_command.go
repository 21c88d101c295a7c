package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/engine"
	"github.com/ivlev/slideshow/internal/playback"
)

type key int

const (
	keyNone key = iota
	keyNext
	keyPrev
	keyToggle
	keyRecord
	keyQuit
)

// parseKeys decodes raw terminal input. Arrow keys arrive as ESC [ C / ESC [ D.
func parseKeys(buf []byte) []key {
	var keys []key
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b == 0x1b {
			if i+2 < len(buf) && buf[i+1] == '[' {
				switch buf[i+2] {
				case 'C':
					keys = append(keys, keyNext)
				case 'D':
					keys = append(keys, keyPrev)
				}
				i += 2
			}
			continue
		}
		switch b {
		case ' ':
			keys = append(keys, keyToggle)
		case 'l', 'n':
			keys = append(keys, keyNext)
		case 'h', 'p':
			keys = append(keys, keyPrev)
		case 'r', 'R':
			keys = append(keys, keyRecord)
		case 'q', 'Q', 0x03, 0x04:
			keys = append(keys, keyQuit)
		}
	}
	return keys
}

// console serializes output from the key loop and controller listeners.
// In raw mode every line needs an explicit carriage return.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := strings.ReplaceAll(fmt.Sprintf(format, args...), "\n", "\r\n")
	io.WriteString(c.out, msg)
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "play [dir | album.yaml | files...]",
		Short: "Present slides interactively with keyboard control",
		Long: "Keys: left/right (or h/l) navigate, space pauses or resumes autoplay, " +
			"r starts or stops a recording, q quits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return errors.New("play needs an interactive terminal; use record for headless capture")
			}
			a, err := loadAlbum(args)
			if err != nil {
				return err
			}
			if err := flags.apply(a); err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer cancel()

			presenter, logger, cleanup, err := ctx.openPresenter(signalCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			con := &console{out: cmd.OutOrStdout()}
			presenter.Controller().Subscribe(func(ev playback.Event) {
				snap, ok := presenter.Snapshot()
				if !ok || snap.ID != ev.Session {
					return
				}
				con.printf("[%d/%d] %s  (%s)\n", ev.Index+1, snap.Len(), snap.Assets[ev.Index].Name, ev.Trigger)
			})

			snap, err := presenter.OpenAlbum(signalCtx, a)
			if err != nil {
				return err
			}

			fd := int(os.Stdin.Fd())
			state, err := term.MakeRaw(fd)
			if err != nil {
				presenter.CloseSession(context.WithoutCancel(signalCtx))
				return fmt.Errorf("enter raw mode: %w", err)
			}
			defer term.Restore(fd, state)

			con.printf("%s: %d slides, %s each. ←/→ navigate, space pause, r record, q quit\n",
				titleOr(snap.Title, "slideshow"), snap.Len(), snap.Interval)
			con.printf("[1/%d] %s\n", snap.Len(), snap.Current().Name)

			p := &player{presenter: presenter, con: con, logger: logger}
			return p.run(signalCtx, readKeys(os.Stdin))
		},
	}
	flags.bind(cmd)
	return cmd
}

func titleOr(title, fallback string) string {
	if title == "" {
		return fallback
	}
	return title
}

func readKeys(r io.Reader) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		buf := make([]byte, 32)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				ch <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

type player struct {
	presenter *engine.Presenter
	con       *console
	logger    *zap.Logger
	reports   sync.WaitGroup
}

// run handles key presses until quit, end of input or ctx cancellation, then
// closes the session, finalizing any recording in progress.
func (p *player) run(ctx context.Context, input <-chan []byte) error {
	defer p.reports.Wait()

	for {
		select {
		case <-ctx.Done():
			return p.close(ctx)
		case buf, ok := <-input:
			if !ok {
				return p.close(ctx)
			}
			for _, k := range parseKeys(buf) {
				if k == keyQuit {
					return p.close(ctx)
				}
				p.handle(ctx, k)
			}
		}
	}
}

func (p *player) handle(ctx context.Context, k key) {
	switch k {
	case keyNext, keyPrev:
		dir := 1
		if k == keyPrev {
			dir = -1
		}
		if _, err := p.presenter.Advance(dir); err != nil {
			p.con.printf("advance: %v\n", err)
		}
	case keyToggle:
		playing, err := p.presenter.TogglePlay()
		if err != nil {
			p.con.printf("toggle: %v\n", err)
			return
		}
		if playing {
			p.con.printf("▶ resumed\n")
		} else {
			p.con.printf("⏸ paused\n")
		}
	case keyRecord:
		p.toggleRecording(ctx)
	}
}

func (p *player) toggleRecording(ctx context.Context) {
	if p.presenter.Recorder().Active() != nil {
		if _, err := p.presenter.StopRecording(ctx); err != nil {
			p.con.printf("stop recording: %v\n", err)
		}
		return
	}
	job, err := p.presenter.Record(ctx)
	if err != nil {
		p.con.printf("record: %v\n", err)
		return
	}
	p.con.printf("● recording %s\n", job.Planned)

	p.reports.Add(1)
	go func() {
		defer p.reports.Done()
		<-job.Done()
		p.report(job)
	}()
}

func (p *player) report(job *capture.Job) {
	var sb strings.Builder
	if err := reportJob(&sb, job, p.logger); err != nil {
		p.con.printf("%v\n", err)
		return
	}
	p.con.printf("%s", sb.String())
}

func (p *player) close(ctx context.Context) error {
	if err := p.presenter.CloseSession(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	p.con.printf("bye\n")
	return ctx.Err()
}
