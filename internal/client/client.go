package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"echoline/internal/shared"
	"echoline/internal/shared/logger"
	"echoline/internal/shared/types"
)

// Client performs one interactive round trip against an echo server: say a
// line, print what comes back, exit. It holds no state beyond the single
// connection and never retries.
type Client struct {
	conf types.ClientConf
	addr string

	// In and Out are the terminal streams. They default to stdin/stdout and
	// are swappable so tests can drive the interaction.
	In  io.Reader
	Out io.Writer

	log zerolog.Logger
}

// New creates a Client that will talk to addr (host:port) with the given
// behavior configuration.
func New(conf types.ClientConf, addr string) *Client {
	return &Client{
		conf: conf,
		addr: addr,
		In:   os.Stdin,
		Out:  os.Stdout,
		log: logger.WithComponent("client").With().
			Str("session_id", uuid.NewString()).
			Logger(),
	}
}

// Run executes the round trip: connect, prompt for one line, send its bytes,
// receive up to as many bytes back, print them. Any failure aborts the run;
// a peer that answers with fewer bytes than were sent does not.
func (c *Client) Run() error {
	started := time.Now()

	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	meter := shared.NewMeteredConn(conn)
	c.log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("connection established")

	line, err := c.promptLine()
	if err != nil {
		return err
	}
	payload := []byte(line)

	if err := c.send(meter, payload); err != nil {
		return err
	}

	reply, err := c.receive(meter, len(payload))
	if err != nil {
		return err
	}
	if !utf8.Valid(reply) {
		return fmt.Errorf("response is not valid utf-8 (%d bytes)", len(reply))
	}
	fmt.Fprintln(c.Out, "Received >", string(reply))

	c.log.Info().
		Str("remote_addr", conn.RemoteAddr().String()).
		Uint64("bytes_sent", meter.BytesSent()).
		Uint64("bytes_received", meter.BytesReceived()).
		Dur("elapsed", time.Since(started)).
		Msg("round trip complete")
	return nil
}

func (c *Client) dial() (net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if t := time.Duration(c.conf.DialTimeout) * time.Second; t > 0 {
		conn, err = net.DialTimeout("tcp", c.addr, t)
	} else {
		conn, err = net.Dial("tcp", c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	return conn, nil
}

// promptLine writes the prompt and reads one line of input. The trailing
// newline is stripped. EOF before any input is an error; EOF after partial
// input keeps the partial line.
func (c *Client) promptLine() (string, error) {
	fmt.Fprint(c.Out, "Say >")
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func (c *Client) send(conn net.Conn, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if t := c.ioTimeout(); t > 0 {
		conn.SetWriteDeadline(time.Now().Add(t))
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send %d bytes: %w", len(payload), err)
	}
	return nil
}

// receive collects up to budget bytes of reply. The budget is the byte
// length of the outgoing message, so the reply can never outgrow what was
// said; whatever the peer sends beyond it is abandoned.
func (c *Client) receive(conn net.Conn, budget int) ([]byte, error) {
	buf := make([]byte, budget)
	if budget == 0 {
		return buf, nil
	}
	if t := c.ioTimeout(); t > 0 {
		conn.SetReadDeadline(time.Now().Add(t))
	}
	n, err := io.ReadFull(conn, buf)
	if err != nil && !tolerableShortRead(err, n) {
		return nil, fmt.Errorf("failed to receive echo: %w", err)
	}
	return buf[:n], nil
}

// tolerableShortRead reports whether a failed read still carries a usable
// reply: the peer closing early keeps the prefix it sent, and so does a
// deadline that fired after some data arrived. A deadline with nothing
// received at all is a real failure.
func tolerableShortRead(err error, n int) bool {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return true
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return n > 0
	}
	return false
}

func (c *Client) ioTimeout() time.Duration {
	return time.Duration(c.conf.IOTimeout) * time.Second
}
