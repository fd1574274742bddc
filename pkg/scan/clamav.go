package scan

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// ClamAVScanner streams file bytes to a clamd daemon over its INSTREAM
// protocol.
type ClamAVScanner struct {
	address string
	timeout time.Duration
}

func NewClamAVScanner(host, port string) *ClamAVScanner {
	return &ClamAVScanner{
		address: net.JoinHostPort(host, port),
		timeout: 30 * time.Second,
	}
}

func (s *ClamAVScanner) Scan(ctx context.Context, fileName string, data []byte) (Result, error) {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return Result{}, fmt.Errorf("connecting to clamd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return Result{}, fmt.Errorf("writing INSTREAM command: %w", err)
	}

	// clamd expects length-prefixed chunks terminated by a zero-length
	// chunk.
	const chunkSize = 64 * 1024
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(chunk)))
		if _, err := conn.Write(size[:]); err != nil {
			return Result{}, fmt.Errorf("writing chunk size: %w", err)
		}
		if _, err := conn.Write(chunk); err != nil {
			return Result{}, fmt.Errorf("writing chunk: %w", err)
		}
	}

	var terminator [4]byte
	if _, err := conn.Write(terminator[:]); err != nil {
		return Result{}, fmt.Errorf("terminating stream: %w", err)
	}

	var response bytes.Buffer
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	reply := strings.TrimSpace(strings.Trim(response.String(), "\x00"))
	switch {
	case strings.HasSuffix(reply, "OK"):
		return Result{Clean: true}, nil
	case strings.Contains(reply, "FOUND"):
		fields := strings.Fields(reply)
		signature := ""
		if len(fields) >= 2 {
			signature = fields[len(fields)-2]
		}
		return Result{Clean: false, Signature: signature}, nil
	default:
		return Result{}, fmt.Errorf("unexpected clamd reply for %s: %q", fileName, reply)
	}
}
