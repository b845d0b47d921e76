package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/gwillem/linecart/internal/clock"
)

// Link is the serial connection to the motor controller. It implements
// both Sensors and Motion.
//
// A background reader keeps the most recent sensor frame. Refresh copies
// that frame into the snapshot the getters serve for the current tick.
type Link struct {
	port   io.ReadWriteCloser
	cfg    LinkConfig
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	latest    SensorFrame
	latestAt  time.Time
	haveFrame bool
	malformed int

	snap    SensorFrame
	snapErr error

	writeMu sync.Mutex
	done    chan struct{}
}

// OpenLink opens the serial port named in cfg and starts reading frames.
func OpenLink(cfg LinkConfig, logger *slog.Logger) (*Link, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("open link: %w", ErrNotConnected)
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open link %s: %w", cfg.Port, err)
	}
	return NewLink(port, cfg, nil, logger), nil
}

// NewLink wraps an already open port. A nil clock uses the system clock.
func NewLink(port io.ReadWriteCloser, cfg LinkConfig, clk clock.Clock, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().Link.StaleAfter
	}
	l := &Link{
		port:    port,
		cfg:     cfg,
		clock:   clock.OrSystem(clk),
		logger:  logger.With("component", "link"),
		snapErr: ErrBusFailure,
		done:    make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Close closes the port and waits for the reader to exit.
func (l *Link) Close() error {
	err := l.port.Close()
	<-l.done
	return err
}

func (l *Link) readLoop() {
	defer close(l.done)
	var split frameSplitter
	buf := make([]byte, 128)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			for _, frame := range split.push(buf[:n]) {
				l.handleFrame(frame)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				l.logger.Debug("link reader stopped", "err", err)
			}
			return
		}
	}
}

func (l *Link) handleFrame(frame string) {
	switch {
	case strings.HasPrefix(frame, prefixData):
		f, err := parseDataFrame(strings.TrimPrefix(frame, prefixData), l.cfg.IRActiveLow)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.malformed++
			return
		}
		l.latest = f
		l.latestAt = l.clock.Now()
		l.haveFrame = true
	case strings.HasPrefix(frame, prefixLog):
		l.logger.Debug("controller", "msg", strings.TrimPrefix(frame, prefixLog))
	default:
		l.mu.Lock()
		l.malformed++
		l.mu.Unlock()
	}
}

// Malformed returns the number of frames that could not be decoded.
func (l *Link) Malformed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.malformed
}

// Refresh takes the newest sensor frame as this tick's snapshot. A missing
// or stale frame makes the snapshot unreadable until the next Refresh.
func (l *Link) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.haveFrame {
		l.snapErr = ErrBusFailure
		return fmt.Errorf("refresh: no frame received: %w", ErrBusFailure)
	}
	if age := l.clock.Now().Sub(l.latestAt); age > l.cfg.StaleAfter {
		l.snapErr = ErrBusFailure
		return fmt.Errorf("refresh: frame is %s old: %w", age, ErrBusFailure)
	}
	l.snap = l.latest
	l.snapErr = nil
	return nil
}

func (l *Link) LineSensors() (LineReading, error) {
	if l.snapErr != nil {
		return LineReading{}, l.snapErr
	}
	return l.snap.Line, nil
}

func (l *Link) Distance() (float64, error) {
	if l.snapErr != nil {
		return 0, l.snapErr
	}
	if !l.snap.HasEcho {
		return 0, ErrNoEcho
	}
	return DistanceFromEcho(l.snap.Echo), nil
}

func (l *Link) Color() (ColorCode, error) {
	if l.snapErr != nil {
		return ColorUnknown, l.snapErr
	}
	if !l.snap.Color.Valid() {
		return ColorUnknown, ErrNoColor
	}
	return l.snap.Color, nil
}

func (l *Link) send(verb string, speed int) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.port.Write(encodeMotion(verb, speed)); err != nil {
		l.logger.Warn("motion write failed", "verb", verb, "err", err)
	}
}

func (l *Link) MoveForward(speed int)  { l.send(verbForward, speed) }
func (l *Link) MoveBackward(speed int) { l.send(verbBackward, speed) }
func (l *Link) TurnLeft(speed int)     { l.send(verbTurnLeft, speed) }
func (l *Link) TurnRight(speed int)    { l.send(verbTurnRight, speed) }
func (l *Link) SpinLeft(speed int)     { l.send(verbSpinLeft, speed) }
func (l *Link) SpinRight(speed int)    { l.send(verbSpinRight, speed) }
func (l *Link) LateralLeft(speed int)  { l.send(verbLateralLeft, speed) }
func (l *Link) LateralRight(speed int) { l.send(verbLateralRight, speed) }
func (l *Link) EmergencyStop()         { l.send(verbStop, 0) }
