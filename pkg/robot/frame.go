package robot

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Framing of the motor controller protocol. Every frame is a prefix,
// a comma separated payload and a terminator.
const (
	prefixData   = "$DATA:"
	prefixMotion = "$MOV:"
	prefixLog    = "$LOG:"
	terminator   = '#'
)

// Motion verbs understood by the motor controller.
const (
	verbForward      = "FWD"
	verbBackward     = "BWD"
	verbTurnLeft     = "TL"
	verbTurnRight    = "TR"
	verbSpinLeft     = "SL"
	verbSpinRight    = "SR"
	verbLateralLeft  = "LL"
	verbLateralRight = "LR"
	verbStop         = "STOP"
)

// SensorFrame is one decoded $DATA frame.
type SensorFrame struct {
	Line    LineReading
	Echo    time.Duration
	HasEcho bool
	Color   ColorCode
}

// parseDataFrame decodes the payload of a $DATA frame, e.g.
// "ir=11100111,echo=1450,color=2". An echo of "-" means no echo.
func parseDataFrame(payload string, irActiveLow bool) (SensorFrame, error) {
	var f SensorFrame
	var seenIR bool
	for _, field := range strings.Split(payload, ",") {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return f, fmt.Errorf("malformed field %q", field)
		}
		switch key {
		case "ir":
			if irActiveLow {
				val = invertBits(val)
			}
			r, ok := ParseLineReading(val)
			if !ok {
				return f, fmt.Errorf("bad ir value %q", val)
			}
			f.Line = r
			seenIR = true
		case "echo":
			if val == "-" {
				continue
			}
			us, err := strconv.Atoi(val)
			if err != nil || us < 0 {
				return f, fmt.Errorf("bad echo value %q", val)
			}
			f.Echo = time.Duration(us) * time.Microsecond
			f.HasEcho = true
		case "color":
			c, err := strconv.Atoi(val)
			if err != nil {
				return f, fmt.Errorf("bad color value %q", val)
			}
			f.Color = ColorCode(c)
		}
	}
	if !seenIR {
		return f, fmt.Errorf("frame without ir field")
	}
	return f, nil
}

func invertBits(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch c {
		case '0':
			b[i] = '1'
		case '1':
			b[i] = '0'
		}
	}
	return string(b)
}

func encodeMotion(verb string, speed int) []byte {
	return fmt.Appendf(nil, "%s%s,%d%c", prefixMotion, verb, speed, terminator)
}

// frameSplitter accumulates serial bytes and yields complete frames.
type frameSplitter struct {
	buf []byte
}

// maxFrameLen caps a partial frame so line noise cannot grow the buffer.
const maxFrameLen = 256

func (s *frameSplitter) push(data []byte) []string {
	s.buf = append(s.buf, data...)
	var frames []string
	for {
		i := bytes.IndexByte(s.buf, terminator)
		if i < 0 {
			break
		}
		frame := s.buf[:i]
		if j := bytes.LastIndexByte(frame, '$'); j >= 0 {
			frames = append(frames, string(frame[j:]))
		}
		s.buf = s.buf[i+1:]
	}
	if len(s.buf) > maxFrameLen {
		s.buf = s.buf[:0]
	}
	return frames
}
