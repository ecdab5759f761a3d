package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fakeInstrument accepts one connection and echoes back canned lines,
// standing in for real VISA hardware the way a local net.Listener can.
func fakeInstrument(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return ln.Addr().String()
}

func TestHardwareWriteQuery(t *testing.T) {
	addr := fakeInstrument(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch line {
			case "*IDN?\n":
				conn.Write([]byte("Fake,PSU,1,1.0\n"))
			case "VOLT 5\n":
				// write has no response
			case ":SYSTem:ERRor?\n":
				conn.Write([]byte(NoErrorSentinel + "\n"))
			}
		}
	})

	h := NewHardware(addr, DefaultOptions(), discardLogger())
	require.NoError(t, h.Connect(context.Background()))
	defer h.Close()

	idn, err := h.Query(context.Background(), "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "Fake,PSU,1,1.0", idn)

	require.NoError(t, h.Write(context.Background(), "VOLT 5"))

	errs, err := h.ClearErrors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestHardwareReadRawBlockHeader(t *testing.T) {
	addr := fakeInstrument(t, func(conn net.Conn) {
		// #14 followed by 4 bytes
		conn.Write([]byte("#14\x01\x02\x03\x04"))
		time.Sleep(50 * time.Millisecond)
	})

	h := NewHardware(addr, DefaultOptions(), discardLogger())
	require.NoError(t, h.Connect(context.Background()))
	defer h.Close()

	body, err := h.ReadRaw(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, body)
}

func TestHardwareCloseIsIdempotent(t *testing.T) {
	addr := fakeInstrument(t, func(conn net.Conn) {
		time.Sleep(50 * time.Millisecond)
	})
	h := NewHardware(addr, DefaultOptions(), discardLogger())
	require.NoError(t, h.Connect(context.Background()))
	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
}

func TestHardwareWriteBeforeConnectFails(t *testing.T) {
	h := NewHardware("127.0.0.1:1", DefaultOptions(), discardLogger())
	err := h.Write(context.Background(), "VOLT 5")
	assert.Error(t, err)
}
