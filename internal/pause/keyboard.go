package pause

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"
)

// Control bytes that request a pause.
const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
	keyCtrlP = 0x10
)

// KeyboardListener watches stdin in raw mode on its own goroutine and trips
// a Signal when the user presses Ctrl-P, Ctrl-C, or Ctrl-D. It is the
// out-of-band producer for interactive deployments; headless deployments
// simply never start it.
type KeyboardListener struct {
	signal *Signal
	in     *os.File
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	restore func()
}

// NewKeyboardListener creates a listener that trips sig. Reads come from
// os.Stdin.
func NewKeyboardListener(sig *Signal, log *slog.Logger) *KeyboardListener {
	if log == nil {
		log = slog.Default()
	}
	return &KeyboardListener{signal: sig, in: os.Stdin, log: log}
}

// Start puts stdin in raw mode and begins watching for pause keys. It is a
// no-op when stdin is not a terminal (e.g. under a service manager) or when
// already running.
func (l *KeyboardListener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	fd := int(l.in.Fd())
	if !term.IsTerminal(fd) {
		l.log.Debug("stdin is not a terminal, keyboard pause disabled")
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		l.log.Warn("failed to enter raw mode, keyboard pause disabled", "error", err)
		return
	}
	l.restore = func() { _ = term.Restore(fd, oldState) }
	l.running = true

	go l.watch()
}

// Stop restores the terminal state and ignores further key presses. The
// read goroutine exits on the next stdin read after restore.
func (l *KeyboardListener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	if l.restore != nil {
		l.restore()
		l.restore = nil
	}
}

func (l *KeyboardListener) watch() {
	buf := make([]byte, 1)
	for {
		n, err := l.in.Read(buf)
		if err != nil {
			if err != io.EOF {
				l.log.Debug("keyboard listener read failed", "error", err)
			}
			return
		}

		l.mu.Lock()
		running := l.running
		l.mu.Unlock()
		if !running {
			return
		}

		if n == 1 {
			switch buf[0] {
			case keyCtrlP, keyCtrlC, keyCtrlD:
				l.log.Info("pause key pressed, pausing once step completes")
				l.signal.Trip()
			}
		}
	}
}
