// Command asrclient is a reference client for asrstreamd: it streams a
// 16-bit mono PCM file over the wire protocol and prints whatever the
// server sends back.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/MrWong99/asrstreamd/internal/wire"
)

const defaultChunkBytes = 1920 // 60ms of 16kHz mono 16-bit PCM

func main() {
	os.Exit(run())
}

func run() int {
	ip := flag.String("ip", "", "server IP address (required)")
	port := flag.Int("port", 5000, "server port")
	ifn := flag.String("ifn", "", "path to a 16-bit LE mono PCM file to stream; omit for a status query")
	user := flag.String("user", "asrclient", "user id sent in the %u handshake packet")
	chunkBytes := flag.Int("chunk-bytes", defaultChunkBytes, "bytes per %s frame sent to the server")
	flag.Parse()

	if *ip == "" {
		fmt.Fprintln(os.Stderr, "asrclient: --ip is required")
		return 2
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", *ip, *port), 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: dial: %v\n", err)
		return 1
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(wire.MagicString)); err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: send magic string: %v\n", err)
		return 1
	}

	if *ifn == "" {
		return statusQuery(conn)
	}
	return stream(conn, *ifn, *user, *chunkBytes)
}

// statusQuery sends %c and prints every %C status line until %F.
func statusQuery(conn net.Conn) int {
	if err := wire.WriteFrame(conn, wire.CodeStatusQuery, nil); err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: send status query: %v\n", err)
		return 1
	}
	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "asrclient: read: %v\n", err)
			return 1
		}
		switch frame.Code {
		case wire.CodeStatusLine:
			fmt.Println(string(frame.Payload))
		case wire.CodeDone:
			return 0
		default:
			fmt.Fprintf(os.Stderr, "asrclient: unexpected frame %q\n", frame.Code)
			return 1
		}
	}
}

// stream sends %u, waits for %L, sends %b, streams the PCM file in
// chunkBytes-sized %s frames, sends %f, then prints every %R/%E until %F.
func stream(conn net.Conn, path, user string, chunkBytes int) int {
	if err := wire.WriteFrame(conn, wire.CodeUserID, []byte(user)); err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: send user id: %v\n", err)
		return 1
	}

	welcome, err := wire.ReadFrame(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: read welcome: %v\n", err)
		return 1
	}
	if welcome.Code != wire.CodeWelcome {
		fmt.Fprintf(os.Stderr, "asrclient: expected welcome frame, got %q\n", welcome.Code)
		return 1
	}
	fmt.Println(string(welcome.Payload))

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: open %s: %v\n", path, err)
		return 1
	}
	defer f.Close()

	if err := wire.WriteFrame(conn, wire.CodeBegin, nil); err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: send begin: %v\n", err)
		return 1
	}

	done := make(chan int, 1)
	go func() { done <- receiveResults(conn) }()

	reader := bufio.NewReader(f)
	buf := make([]byte, chunkBytes)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if werr := wire.WriteFrame(conn, wire.CodeSpeech, buf[:n]); werr != nil {
				fmt.Fprintf(os.Stderr, "asrclient: send speech chunk: %v\n", werr)
				return 1
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(os.Stderr, "asrclient: read pcm file: %v\n", err)
			}
			break
		}
	}

	if err := wire.WriteFrame(conn, wire.CodeFinish, nil); err != nil {
		fmt.Fprintf(os.Stderr, "asrclient: send finish: %v\n", err)
		return 1
	}

	return <-done
}

// receiveResults prints every %R and %E frame until the server sends %F.
func receiveResults(conn net.Conn) int {
	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "asrclient: read: %v\n", err)
			return 1
		}
		switch frame.Code {
		case wire.CodeResult:
			fmt.Println(string(frame.Payload))
		case wire.CodeError:
			fmt.Fprintf(os.Stderr, "asrclient: server error: %s\n", frame.Payload)
		case wire.CodeDone:
			return 0
		default:
			fmt.Fprintf(os.Stderr, "asrclient: unexpected frame %q\n", frame.Code)
			return 1
		}
	}
}
