// Package console provides PTY-backed device shell consoles: one
// long-lived bridge shell per device, streamed to a single attached
// websocket client with a rolling plain-text scrollback buffer.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/creack/pty"
)

const trackerRestartDelay = 500 * time.Millisecond
const trackerActivityDebounce = 500 * time.Millisecond
const trackerRetryLogInterval = 15 * time.Second

var trackerIgnorePrefixes = [][]byte{
	[]byte("\x1b[?"),
	[]byte("\x1b[>"),
	[]byte("\x1b]10;"),
	[]byte("\x1b]11;"),
}

// Tracker maintains a long-lived PTY shell for one device. It tracks
// output activity, keeps a rolling scrollback buffer of stripped
// output, and forwards raw terminal output to one active websocket
// client.
type Tracker struct {
	consoleID string
	serial    string
	argv      []string

	mu         sync.RWMutex
	clientCh   chan []byte
	ptmx       *os.File
	shellCmd   *exec.Cmd
	lastEvent  time.Time
	scrollback []string
	maxLines   int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	lastRetryLog time.Time
}

// NewTracker creates a tracker that runs argv (e.g. adb -s SERIAL
// shell) on a PTY. maxLines bounds the scrollback buffer.
func NewTracker(consoleID, serial string, argv []string, maxLines int) *Tracker {
	return &Tracker{
		consoleID: consoleID,
		serial:    serial,
		argv:      argv,
		maxLines:  maxLines,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// ID returns the console id.
func (t *Tracker) ID() string { return t.consoleID }

// Serial returns the device serial this console is attached to.
func (t *Tracker) Serial() string { return t.serial }

// IsAttached reports whether the tracker currently has a live PTY.
func (t *Tracker) IsAttached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ptmx != nil
}

// LastActivity returns when meaningful output was last seen. Zero
// until the first output arrives.
func (t *Tracker) LastActivity() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastEvent
}

// Scrollback returns the rolling buffer of stripped output lines.
func (t *Tracker) Scrollback() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.scrollback))
	copy(out, t.scrollback)
	return out
}

// Start launches the tracker loop in a background goroutine.
func (t *Tracker) Start() {
	go t.run()
}

// Stop terminates the tracker and closes the active websocket output
// channel. Safe to call multiple times.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.closePTY()
		<-t.doneCh
	})
}

// AttachWebSocket registers the active websocket stream and returns
// its output channel. If a client is already attached, it is replaced
// and its channel is closed.
func (t *Tracker) AttachWebSocket() chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clientCh != nil {
		close(t.clientCh)
	}
	t.clientCh = make(chan []byte, 64)
	return t.clientCh
}

// DetachWebSocket clears the websocket stream if it matches the
// currently registered one.
func (t *Tracker) DetachWebSocket(ch chan []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clientCh == ch {
		close(t.clientCh)
		t.clientCh = nil
	}
}

// SendInput writes terminal input bytes to the console PTY.
func (t *Tracker) SendInput(data string) error {
	ptmx := t.currentPTY()
	if ptmx == nil {
		deadline := time.Now().Add(2 * time.Second)
		for ptmx == nil && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
			ptmx = t.currentPTY()
		}
	}
	if ptmx == nil {
		return fmt.Errorf("console not attached")
	}
	_, err := io.WriteString(ptmx, data)
	return err
}

func (t *Tracker) currentPTY() *os.File {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ptmx
}

// Resize updates the console PTY dimensions.
func (t *Tracker) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}

	t.mu.RLock()
	ptmx := t.ptmx
	t.mu.RUnlock()
	if ptmx == nil {
		return fmt.Errorf("console not attached")
	}

	return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (t *Tracker) run() {
	defer close(t.doneCh)

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		if err := t.spawnAndRead(); err != nil && err != io.EOF {
			now := time.Now()
			if t.shouldLogRetry(now) {
				log.Printf("[console] %s spawn/read failed: %v", t.serial, err)
			}
		}

		if t.waitOrStop(trackerRestartDelay) {
			return
		}
	}
}

func (t *Tracker) spawnAndRead() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shellCmd := exec.CommandContext(ctx, t.argv[0], t.argv[1:]...)
	ptmx, err := pty.Start(shellCmd)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.ptmx = ptmx
	t.shellCmd = shellCmd
	t.mu.Unlock()

	defer t.closePTY()

	buf := make([]byte, 8192)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			meaningful := isMeaningfulTerminalChunk(chunk)
			now := time.Now()

			t.mu.Lock()
			if meaningful && (t.lastEvent.IsZero() || now.Sub(t.lastEvent) >= trackerActivityDebounce) {
				t.lastEvent = now
			}
			t.appendScrollbackLocked(chunk)
			clientCh := t.clientCh
			t.mu.Unlock()

			if clientCh != nil {
				select {
				case clientCh <- chunk:
				default:
				}
			}
		}

		if err != nil {
			return err
		}

		select {
		case <-t.stopCh:
			return io.EOF
		default:
		}
	}
}

// appendScrollbackLocked folds a raw chunk into the rolling buffer,
// stripped of terminal control sequences. Callers hold t.mu.
func (t *Tracker) appendScrollbackLocked(chunk []byte) {
	clean := stripTerminalControl(chunk)
	if len(clean) == 0 {
		return
	}
	for _, line := range strings.Split(string(clean), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		t.scrollback = append(t.scrollback, line)
	}
	if t.maxLines > 0 && len(t.scrollback) > t.maxLines {
		t.scrollback = t.scrollback[len(t.scrollback)-t.maxLines:]
	}
}

func (t *Tracker) shouldLogRetry(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRetryLog.IsZero() || now.Sub(t.lastRetryLog) >= trackerRetryLogInterval {
		t.lastRetryLog = now
		return true
	}
	return false
}

func isMeaningfulTerminalChunk(chunk []byte) bool {
	for _, prefix := range trackerIgnorePrefixes {
		if bytes.HasPrefix(chunk, prefix) {
			return false
		}
	}

	clean := stripTerminalControl(chunk)
	if len(clean) == 0 {
		return false
	}
	for _, r := range string(clean) {
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func stripTerminalControl(data []byte) []byte {
	const (
		stNormal = iota
		stEsc
		stCSI
		stOSC
		stDCS
	)

	out := make([]byte, 0, len(data))
	state := stNormal
	oscEsc := false
	dcsEsc := false

	for _, b := range data {
		switch state {
		case stNormal:
			if b == 0x1b {
				state = stEsc
				continue
			}
			if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
				continue
			}
			if b == 0x7f {
				continue
			}
			out = append(out, b)
		case stEsc:
			switch b {
			case '[':
				state = stCSI
			case ']':
				state = stOSC
				oscEsc = false
			case 'P':
				state = stDCS
				dcsEsc = false
			default:
				state = stNormal
			}
		case stCSI:
			if b >= 0x40 && b <= 0x7e {
				state = stNormal
			}
		case stOSC:
			if oscEsc {
				if b == '\\' {
					state = stNormal
				}
				oscEsc = false
				continue
			}
			if b == 0x07 {
				state = stNormal
				continue
			}
			oscEsc = b == 0x1b
		case stDCS:
			if dcsEsc {
				if b == '\\' {
					state = stNormal
				}
				dcsEsc = false
				continue
			}
			dcsEsc = b == 0x1b
		}
	}

	return out
}

func (t *Tracker) closePTY() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx != nil {
		_ = t.ptmx.Close()
		t.ptmx = nil
	}
	if t.shellCmd != nil {
		if t.shellCmd.Process != nil {
			_ = t.shellCmd.Process.Kill()
		}
		_ = t.shellCmd.Wait()
		t.shellCmd = nil
	}
}

func (t *Tracker) waitOrStop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-t.stopCh:
		return true
	}
}
