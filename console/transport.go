package console

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Байты протокола telnet (RFC 854).
const (
	iacSE   = 240
	iacSB   = 250
	iacWILL = 251
	iacWONT = 252
	iacDO   = 253
	iacDONT = 254
	iacIAC  = 255
)

// Dial подключается к консоли UUT по telnet. Все опции, предложенные
// сервером, отклоняются: консоли нужен только сырой поток символов.
func Dial(ctx context.Context, address string, timeout time.Duration) (Transport, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("console: dial %s: %w", address, err)
	}
	return newTelnetConn(conn), nil
}

type telnetState int

const (
	stateData telnetState = iota
	stateIAC
	stateOption
	stateSub
	stateSubIAC
)

type telnetConn struct {
	conn net.Conn

	writeMu sync.Mutex
	state   telnetState
	verb    byte
}

func newTelnetConn(conn net.Conn) *telnetConn {
	return &telnetConn{conn: conn}
}

// Read возвращает только данные, вырезая команды telnet.
func (t *telnetConn) Read(p []byte) (int, error) {
	for {
		n, err := t.conn.Read(p)
		if n == 0 {
			return 0, err
		}
		out, replies := t.filter(p[:n])
		if len(replies) > 0 {
			if werr := t.writeRaw(replies); werr != nil && err == nil {
				err = werr
			}
		}
		if out > 0 || err != nil {
			return out, err
		}
	}
}

// filter сжимает p на месте до данных и возвращает ответы на согласование опций.
func (t *telnetConn) filter(p []byte) (int, []byte) {
	var replies []byte
	out := 0
	for _, b := range p {
		switch t.state {
		case stateData:
			if b == iacIAC {
				t.state = stateIAC
				continue
			}
			p[out] = b
			out++
		case stateIAC:
			switch b {
			case iacIAC:
				p[out] = b
				out++
				t.state = stateData
			case iacDO, iacDONT, iacWILL, iacWONT:
				t.verb = b
				t.state = stateOption
			case iacSB:
				t.state = stateSub
			default:
				t.state = stateData
			}
		case stateOption:
			switch t.verb {
			case iacDO:
				replies = append(replies, iacIAC, iacWONT, b)
			case iacWILL:
				replies = append(replies, iacIAC, iacDONT, b)
			}
			t.state = stateData
		case stateSub:
			if b == iacIAC {
				t.state = stateSubIAC
			}
		case stateSubIAC:
			if b == iacSE {
				t.state = stateData
			} else {
				t.state = stateSub
			}
		}
	}
	return out, replies
}

// Write экранирует байт 0xFF.
func (t *telnetConn) Write(p []byte) (int, error) {
	escaped := make([]byte, 0, len(p))
	for _, b := range p {
		if b == iacIAC {
			escaped = append(escaped, iacIAC)
		}
		escaped = append(escaped, b)
	}
	if err := t.writeRaw(escaped); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *telnetConn) writeRaw(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(p)
	return err
}

func (t *telnetConn) Close() error {
	return t.conn.Close()
}
