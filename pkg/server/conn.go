package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ofiterev/ldapsdk-inmem/pkg/ber"
	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/stats"
)

const (
	defaultMaxMessageBytes = 1 << 20
	readChunk              = 4096
	queueDepth             = 16
)

// conn is one accepted connection. A reader goroutine decodes messages from
// the wire and acts on connection-level signals (abandon, unbind)
// immediately; everything else is queued to a single processor goroutine,
// so operations on one connection execute strictly sequentially and bind
// ordering holds by construction.
type conn struct {
	srv *Server
	nc  net.Conn
	id  uint64
	log zerolog.Logger

	// processor-only state
	boundDN string
	sasl    *saslSession

	connProps map[string]interface{}
	queue     chan *ldap.Message

	mu        sync.Mutex // guards writes, abandoned, pending, closing
	abandoned map[int]bool
	pending   map[int]bool
	closing   bool

	done chan struct{}
}

func (s *Server) newConn(nc net.Conn) *conn {
	id := s.nextConnID.Add(1)
	return &conn{
		srv:       s,
		nc:        nc,
		id:        id,
		log:       s.log.With().Uint64("conn", id).Str("src", nc.RemoteAddr().String()).Logger(),
		connProps: map[string]interface{}{},
		queue:     make(chan *ldap.Message, queueDepth),
		abandoned: map[int]bool{},
		pending:   map[int]bool{},
		done:      make(chan struct{}),
	}
}

func (c *conn) serve() {
	defer c.srv.removeConn(c)

	// One span per connection; per-operation spans hang off the chain's
	// tracing interceptor when it is registered.
	_, span := c.srv.tracer.Start(c.srv.baseCtx, "ldap.connection",
		trace.WithAttributes(
			attribute.Int64("ldap.conn", int64(c.id)),
			attribute.String("net.peer", c.nc.RemoteAddr().String()),
		),
	)
	defer span.End()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.process()
	}()

	c.read()
	close(c.queue)
	wg.Wait()
	c.nc.Close()
	close(c.done)
	c.log.Debug().Msg("connection closed")
}

// read decodes messages from the socket until unbind, a fatal decode error
// or EOF. Framing is resumable: a partially received message leaves the
// buffer untouched until more bytes arrive.
func (c *conn) read() {
	maxBytes := c.srv.c.Behaviors.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMessageBytes
	}

	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)
	for {
		for {
			msg, n, err := ldap.ParseMessage(buf)
			if err != nil {
				if errors.Is(err, ber.ErrIncomplete) {
					if len(buf) > maxBytes {
						c.log.Warn().Int("buffered", len(buf)).Msg("message exceeds size limit")
						c.closeWith(ldap.ResultProtocolError, "message too large")
						return
					}
					break // await more bytes
				}
				// Malformed BER or illegal message shape is fatal to the
				// connection; the framing cannot be trusted past this point.
				c.log.Warn().Err(err).Msg("undecodable message")
				c.closeWith(ldap.ResultProtocolError, err.Error())
				return
			}
			buf = buf[n:]

			if !c.accept(msg) {
				return
			}
		}

		n, err := c.nc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
	}
}

// accept routes one decoded message. Returns false when the connection must
// stop reading.
func (c *conn) accept(msg *ldap.Message) bool {
	switch op := msg.Op.(type) {
	case *ldap.UnbindRequest:
		c.srv.addStat(&c.srv.stats.unbinds, 1)
		stats.Server.Add("unbinds", 1)
		c.setClosing()
		return false

	case *ldap.AbandonRequest:
		// Advisory: suppress the response if it has not been sent yet. The
		// in-flight computation is not interrupted.
		c.mu.Lock()
		if c.pending[op.IDToAbandon] {
			c.abandoned[op.IDToAbandon] = true
		}
		c.mu.Unlock()
		return true

	default:
		c.mu.Lock()
		if c.pending[msg.MessageID] {
			// A second outstanding operation with the same message ID would
			// make response routing ambiguous.
			c.mu.Unlock()
			c.log.Warn().Int("msgid", msg.MessageID).Msg("duplicate message ID in flight")
			c.closeWith(ldap.ResultProtocolError, "duplicate message ID")
			return false
		}
		c.pending[msg.MessageID] = true
		c.mu.Unlock()

		c.queue <- msg
		return true
	}
}

// process executes queued operations one at a time.
func (c *conn) process() {
	for msg := range c.queue {
		c.dispatch(msg)
		c.mu.Lock()
		delete(c.pending, msg.MessageID)
		delete(c.abandoned, msg.MessageID)
		c.mu.Unlock()
	}
}

// writeMessage sends a response unless the operation was abandoned or the
// connection is closing.
func (c *conn) writeMessage(messageID int, op ldap.Op) error {
	msg := &ldap.Message{MessageID: messageID, Op: op}
	out := msg.Encode()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned[messageID] {
		return errAbandoned
	}
	if c.closing {
		return errClosing
	}
	_, err := c.nc.Write(out)
	return err
}

var (
	errAbandoned = errors.New("operation abandoned")
	errClosing   = errors.New("connection closing")
)

func (c *conn) isAbandoned(messageID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned[messageID]
}

func (c *conn) setClosing() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
}

// closeWith sends a best-effort notice of disconnection and marks the
// connection closing.
func (c *conn) closeWith(code ldap.ResultCode, diagnostic string) {
	notice := &ldap.ExtendedResponse{
		Result: ldap.Result{Code: code, DiagnosticMessage: diagnostic},
		OID:    ldap.NoticeOfDisconnectionOID,
	}
	msg := &ldap.Message{MessageID: 0, Op: notice}

	c.mu.Lock()
	if !c.closing {
		c.nc.Write(msg.Encode())
		c.closing = true
	}
	c.mu.Unlock()
}

func (c *conn) close() {
	c.setClosing()
	c.nc.Close()
}

func (c *conn) wait() {
	<-c.done
}

func (c *conn) connInfo() interceptor.ConnInfo {
	return interceptor.ConnInfo{
		ID:         c.id,
		RemoteAddr: c.nc.RemoteAddr().String(),
		BoundDN:    c.boundDN,
	}
}
