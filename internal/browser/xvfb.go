package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Screen is the virtual display geometry used in headful mode. Chrome's
// window gets the same size so the timeline renders the columns it would
// render on a desktop.
type Screen struct {
	Width, Height int
}

// DefaultScreen is tall enough for a timeline column to hold a few dozen
// posts before virtual scrolling unmounts them.
var DefaultScreen = Screen{Width: 1280, Height: 2000}

// ParseScreen reads "WIDTHxHEIGHT". Empty means DefaultScreen.
func ParseScreen(s string) (Screen, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultScreen, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Screen{}, fmt.Errorf("browser: screen %q: want WIDTHxHEIGHT", s)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return Screen{}, fmt.Errorf("browser: screen %q: want WIDTHxHEIGHT", s)
	}
	return Screen{Width: width, Height: height}, nil
}

func (s Screen) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// windowSize is the value of Chrome's --window-size flag.
func (s Screen) windowSize() string { return fmt.Sprintf("%d,%d", s.Width, s.Height) }

func xvfbArgs(display string, s Screen) []string {
	return []string{display, "-screen", "0", s.String() + "x24", "-ac", "-nolisten", "tcp"}
}

// displaySocket is the unix socket Xvfb creates for display ":N".
func displaySocket(display string) (string, error) {
	num, ok := strings.CutPrefix(display, ":")
	if !ok {
		return "", fmt.Errorf("browser: display %q: want :N", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("browser: display %q: want :N", display)
	}
	return "/tmp/.X11-unix/X" + num, nil
}

// XvfbReadyTimeout bounds the wait for the display socket.
const XvfbReadyTimeout = 5 * time.Second

func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	sock, err := displaySocket(m.cfg.XvfbDisplay)
	if err != nil {
		return err
	}
	cmd := exec.Command("Xvfb", xvfbArgs(m.cfg.XvfbDisplay, m.cfg.Screen)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	m.xvfb = cmd

	ctx, cancel := context.WithTimeout(context.Background(), XvfbReadyTimeout)
	defer cancel()
	if err := waitForFile(ctx, sock); err != nil {
		m.stopXvfb()
		return fmt.Errorf("display %s not ready: %w", m.cfg.XvfbDisplay, err)
	}
	m.cfg.Logger.Info("browser: xvfb started",
		"display", m.cfg.XvfbDisplay, "screen", m.cfg.Screen.String(), "pid", cmd.Process.Pid)
	return nil
}

func waitForFile(ctx context.Context, path string) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		p.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
