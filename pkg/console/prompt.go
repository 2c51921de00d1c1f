package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/term"
)

// keyChan starts the single stdin reader. All keyboard input flows
// through one channel so a pending read never swallows a later
// prompt's keystroke.
func (c *Console) keyChan() chan byte {
	c.keyOnce.Do(func() {
		c.keys = make(chan byte, 8)
		go func() {
			var b [1]byte
			for {
				n, err := c.In.Read(b[:])
				if err != nil {
					close(c.keys)
					return
				}
				if n > 0 {
					c.keys <- b[0]
				}
			}
		}()
	})
	return c.keys
}

// raw switches the input terminal to raw mode and returns the restore
// function. Non-terminal inputs get a no-op.
func (c *Console) raw() func() {
	fd := int(c.In.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	return func() { term.Restore(fd, old) }
}

// Confirm asks a yes/no question and waits for a single keystroke.
// Anything other than y is no. Non-interactive sessions answer no
// without reading.
func (c *Console) Confirm(prompt string) bool {
	if !c.Interactive {
		return false
	}
	c.clearProgress()
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)

	restore := c.raw()
	key, ok := <-c.keyChan()
	restore()

	if ok && key >= 0x20 && key < 0x7f {
		fmt.Fprintf(c.Out, "%c\n", key)
	} else {
		fmt.Fprint(c.Out, "\n")
	}
	return ok && (key == 'y' || key == 'Y')
}

// Countdown displays "<action> in N..." once per second. A keypress
// skips the remaining wait; cancelling ctx aborts and returns false.
func (c *Console) Countdown(ctx context.Context, action string, seconds int) bool {
	if seconds <= 0 {
		return true
	}
	var keys chan byte
	if c.Interactive {
		restore := c.raw()
		defer restore()
		keys = c.keyChan()
	}
	defer c.clearCountdown()
	for i := seconds; i > 0; i-- {
		if c.Interactive {
			fmt.Fprintf(c.Out, "\r\033[K%s in %d...", action, i)
		} else {
			fmt.Fprintf(c.Out, "%s in %d...\n", action, i)
		}
		select {
		case <-ctx.Done():
			return false
		case <-keys:
			return true
		case <-time.After(time.Second):
		}
	}
	return true
}

func (c *Console) clearCountdown() {
	if c.Interactive {
		fmt.Fprint(c.Out, "\r\033[K")
	}
}

// WatchCancel derives a context that is cancelled by the first
// keypress. The returned stop function restores the terminal and must
// be called before any later prompt.
func (c *Console) WatchCancel(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	if !c.Interactive {
		return ctx, cancel
	}

	restore := c.raw()
	done := make(chan struct{})
	go func() {
		select {
		case _, ok := <-c.keyChan():
			if ok {
				cancel()
			}
		case <-done:
		case <-ctx.Done():
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			restore()
			cancel()
		})
	}
	return ctx, stop
}
