package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
)

// Hardware is the VISA-style transport: it opens a net.Conn once and
// serializes every call behind a mutex, one outstanding call per
// session, applying SetReadDeadline/SetWriteDeadline around every I/O.
type Hardware struct {
	addr    string
	opts    Options
	log     *logrus.Logger
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	closed  bool
	idn     string
}

// NewHardware builds a Hardware transport for a VISA-like resource
// address ("host:port" for the TCPIP::SOCKET case this implementation
// targets).
func NewHardware(addr string, opts Options, log *logrus.Logger) *Hardware {
	return &Hardware{addr: addr, opts: opts, log: log}
}

func (h *Hardware) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: h.opts.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", h.addr)
	if err != nil {
		return pterrors.NewTransportError(pterrors.Timeout, "connect", err)
	}
	h.conn = conn
	h.reader = bufio.NewReader(conn)
	h.log.WithField("addr", h.addr).Info("hardware transport connected")
	return nil
}

func (h *Hardware) Write(ctx context.Context, cmd string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeLocked(cmd)
}

func (h *Hardware) writeLocked(cmd string) error {
	if h.closed {
		return pterrors.NewTransportError(pterrors.Closed, "write", nil)
	}
	if h.conn == nil {
		return pterrors.NewTransportError(pterrors.IoError, "write", fmt.Errorf("not connected"))
	}
	h.conn.SetWriteDeadline(time.Now().Add(h.opts.QueryTimeout))
	if _, err := h.conn.Write([]byte(cmd + "\n")); err != nil {
		return pterrors.NewTransportError(pterrors.IoError, "write", err)
	}
	return nil
}

func (h *Hardware) Query(ctx context.Context, cmd string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writeLocked(cmd); err != nil {
		return "", err
	}
	h.conn.SetReadDeadline(time.Now().Add(h.opts.QueryTimeout))
	line, err := h.reader.ReadString('\n')
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return "", pterrors.NewTransportError(pterrors.Timeout, "query", err)
		}
		return "", pterrors.NewTransportError(pterrors.IoError, "query", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (h *Hardware) ReadRaw(ctx context.Context, n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil, pterrors.NewTransportError(pterrors.IoError, "read_raw", fmt.Errorf("not connected"))
	}
	h.conn.SetReadDeadline(time.Now().Add(h.opts.QueryTimeout))

	if n > 0 {
		buf := make([]byte, n)
		if _, err := readFull(h.reader, buf); err != nil {
			return nil, pterrors.NewTransportError(pterrors.IoError, "read_raw", err)
		}
		return buf, nil
	}

	// IEEE-488.2 block header: '#' <digit-count d> <d digits of length> <bytes>
	hdr := make([]byte, 2)
	if _, err := readFull(h.reader, hdr); err != nil {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", err)
	}
	if hdr[0] != '#' {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", fmt.Errorf("missing block header, got %q", hdr))
	}
	digitCount := int(hdr[1] - '0')
	if digitCount <= 0 || digitCount > 9 {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", fmt.Errorf("invalid block digit count %d", digitCount))
	}
	lenBytes := make([]byte, digitCount)
	if _, err := readFull(h.reader, lenBytes); err != nil {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", err)
	}
	length, err := strconv.Atoi(string(lenBytes))
	if err != nil {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", err)
	}
	body := make([]byte, length)
	if _, err := readFull(h.reader, body); err != nil {
		return nil, pterrors.NewTransportError(pterrors.IoError, "read_raw", err)
	}
	return body, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (h *Hardware) ClearErrors(ctx context.Context) ([]string, error) {
	var errs []string
	for {
		resp, err := h.Query(ctx, ":SYSTem:ERRor?")
		if err != nil {
			return errs, err
		}
		if resp == NoErrorSentinel {
			return errs, nil
		}
		errs = append(errs, resp)
	}
}

func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

func (h *Hardware) Identity() string { return h.idn }

// SetIdentity lets the instrument runtime record the *IDN? response after
// connect.
func (h *Hardware) SetIdentity(idn string) { h.idn = idn }
