// Package server exposes a Market over a line-oriented TCP console.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/pkg/schema"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

const (
	defaultMaxConns     = 100
	defaultPriceCeiling = 50000
	connLifetime        = 5 * time.Minute
	commandDeadline     = 30 * time.Second
)

// Router serves one Market to every TCP connection.
type Router struct {
	market   sdk.Market
	log      logger.Logger
	cert     *tls.Certificate
	maxConns int
	ceiling  int64

	mu       sync.Mutex
	listener net.Listener
	active   map[net.Conn]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	conns    sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithMaxConns caps concurrent connections.
func WithMaxConns(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxConns = n
		}
	}
}

// WithPriceCeiling sets the ceiling a SEARCH gets when it names none.
func WithPriceCeiling(ceiling int64) Option {
	return func(r *Router) { r.ceiling = ceiling }
}

func NewRouter(m sdk.Market, opts ...Option) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		market:   m,
		log:      logger.NewNop(),
		maxConns: defaultMaxConns,
		ceiling:  defaultPriceCeiling,
		active:   make(map[net.Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the bound address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	r.log.Info("TCP console listening", logger.String("addr", listener.Addr().String()), logger.Bool("tls", r.cert != nil))

	semaphore := make(chan struct{}, r.maxConns)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warn("Accept failed", logger.Error(err))
			continue
		}

		// Aggressive lifetime for light traffic
		conn.SetDeadline(time.Now().Add(connLifetime))

		if !r.track(conn) {
			conn.Close()
			continue
		}
		go func(c net.Conn) {
			defer r.conns.Done()
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				r.untrack(c)
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener, aborts in-flight commands and waits for the
// connection goroutines to exit.
func (r *Router) Stop() {
	r.cancel()

	r.mu.Lock()
	if r.listener != nil {
		r.listener.Close()
	}
	for c := range r.active {
		c.Close()
	}
	r.mu.Unlock()

	r.conns.Wait()
}

// track registers c unless the router is stopping.
func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return false
	}
	r.active[c] = struct{}{}
	r.conns.Add(1)
	return true
}

func (r *Router) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.active, c)
	r.mu.Unlock()
}

// HandleConnection serves commands from conn until QUIT, EOF or a read
// timeout. It does not close conn.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(commandDeadline))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && r.ctx.Err() == nil {
				r.log.Debug("Connection closed", logger.String("remote", conn.RemoteAddr().String()), logger.Error(err))
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		command, args, _ := strings.Cut(line, " ")
		command = strings.ToUpper(command)

		if command == "QUIT" {
			return
		}
		r.dispatch(conn, command, strings.TrimSpace(args))
	}
}

func (r *Router) dispatch(w io.Writer, command, args string) {
	ctx := r.ctx
	parts := strings.Fields(args)

	switch command {
	case "PING":
		fmt.Fprintln(w, "PONG")

	case "SEARCH":
		q := schema.NewQuery(r.ceiling)
		if args != "" {
			if err := json.Unmarshal([]byte(args), &q); err != nil {
				replyErr(w, fmt.Errorf("%w: invalid json query", sdk.ErrBadRequest))
				return
			}
		}
		reply(w)(r.market.Search(ctx, q))

	case "GET":
		if len(parts) != 1 {
			replyErr(w, usage("GET <listing>"))
			return
		}
		reply(w)(r.market.Listing(ctx, parts[0]))

	case "FEATURED":
		reply(w)(r.market.Featured(ctx))

	case "ACCOUNT":
		if len(parts) != 1 {
			replyErr(w, usage("ACCOUNT <account>"))
			return
		}
		reply(w)(r.market.Account(ctx, parts[0]))

	case "SUMMARY":
		if len(parts) != 1 {
			replyErr(w, usage("SUMMARY <account>"))
			return
		}
		reply(w)(r.market.Summary(ctx, parts[0]))

	case "BUY":
		if len(parts) != 2 {
			replyErr(w, usage("BUY <account> <listing>"))
			return
		}
		reply(w)(r.market.Purchase(ctx, parts[0], parts[1]))

	case "UPLOAD":
		account, body, _ := strings.Cut(args, " ")
		if account == "" {
			replyErr(w, usage("UPLOAD <account> <json draft>"))
			return
		}
		var draft schema.UploadDraft
		if strings.TrimSpace(body) != "" {
			if err := json.Unmarshal([]byte(body), &draft); err != nil {
				replyErr(w, fmt.Errorf("%w: invalid json draft", sdk.ErrBadRequest))
				return
			}
		}
		reply(w)(r.market.SubmitUpload(ctx, account, draft))

	case "NOTIFY":
		n, ok, err := r.market.Notification(ctx)
		if err != nil {
			replyErr(w, err)
			return
		}
		if !ok {
			fmt.Fprintln(w, "OK null")
			return
		}
		writeJSON(w, n)

	default:
		replyErr(w, fmt.Errorf("%w: unknown command %s", sdk.ErrBadRequest, command))
	}
}

// reply returns a writer for a (value, error) pair.
func reply(w io.Writer) func(any, error) {
	return func(v any, err error) {
		if err != nil {
			replyErr(w, err)
			return
		}
		writeJSON(w, v)
	}
}

func writeJSON(w io.Writer, v any) {
	res, err := json.Marshal(v)
	if err != nil {
		replyErr(w, err)
		return
	}
	fmt.Fprintln(w, "OK", string(res))
}

func replyErr(w io.Writer, err error) {
	code, message := sdk.ErrorCode(err)
	fmt.Fprintln(w, "ERR", code, strings.ReplaceAll(message, "\n", " "))
}

func usage(form string) error {
	return fmt.Errorf("%w: usage %s", sdk.ErrBadRequest, form)
}
