// Package sdk provides the client-side library for the negative-result
// marketplace. It talks to a remote daemon over TCP/TLS or runs the market
// embedded in the calling process.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

const (
	maxAttempts    = 3
	commandTimeout = 30 * time.Second
)

// Client is a remote client for the marketplace daemon. It implements
// Market.
type Client struct {
	addr     string
	plainTCP bool
	log      logger.Logger

	mu     sync.Mutex // guards the connection
	conn   net.Conn
	reader *bufio.Reader
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPlainTCP disables TLS.
func WithPlainTCP() ClientOption {
	return func(c *Client) { c.plainTCP = true }
}

// WithClientLogger reports reconnects to log.
func WithClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// Connect establishes a TLS connection to a daemon. If NEGMARKET_DISABLE_TLS
// is "true" it falls back to plain TCP.
func Connect(addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		addr:     addr,
		plainTCP: os.Getenv("NEGMARKET_DISABLE_TLS") == "true",
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	var conn net.Conn
	var err error
	if c.plainTCP {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true, // the daemon uses a self-signed certificate
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// roundTrip sends one command line and returns the reply payload. Safe
// commands are retried up to maxAttempts times on transport errors; BUY and
// UPLOAD are sent at most once so a lost reply never charges twice.
func (c *Client) roundTrip(ctx context.Context, cmd string, retry bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := 1
	if retry {
		attempts = maxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		deadline := time.Now().Add(commandTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		c.conn.SetDeadline(deadline)

		var line string
		if _, err = fmt.Fprint(c.conn, cmd+"\n"); err == nil {
			if line, err = c.reader.ReadString('\n'); err == nil {
				return parseReply(strings.TrimSpace(line))
			}
		}

		c.log.Warn("Command failed, reconnecting",
			logger.Int("attempt", i+1),
			logger.String("addr", c.addr),
			logger.Error(err),
		)
		if reconnectErr := c.reconnect(); reconnectErr != nil {
			c.log.Warn("Reconnect failed", logger.Error(reconnectErr))
		}
		if i+1 < attempts {
			time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// parseReply splits "OK <payload>", "PONG" and "ERR <code> <message>".
func parseReply(line string) (string, error) {
	switch {
	case line == "PONG" || line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case strings.HasPrefix(line, "ERR "):
		code, message, _ := strings.Cut(strings.TrimPrefix(line, "ERR "), " ")
		return "", CodeError(code, message)
	default:
		return "", fmt.Errorf("unexpected reply %q", line)
	}
}

// call runs a command and decodes its JSON payload into T.
func call[T any](ctx context.Context, c *Client, cmd string, retry bool) (T, error) {
	var out T
	payload, err := c.roundTrip(ctx, cmd, retry)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("decode reply to %s: %w", strings.Fields(cmd)[0], err)
	}
	return out, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, "PING", true)
	return err
}

func (c *Client) Search(ctx context.Context, q schema.Query) ([]schema.Listing, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return call[[]schema.Listing](ctx, c, "SEARCH "+string(body), true)
}

func (c *Client) Listing(ctx context.Context, id string) (schema.Listing, error) {
	if err := checkToken(id); err != nil {
		return schema.Listing{}, err
	}
	return call[schema.Listing](ctx, c, "GET "+id, true)
}

func (c *Client) Featured(ctx context.Context) ([]schema.Listing, error) {
	return call[[]schema.Listing](ctx, c, "FEATURED", true)
}

func (c *Client) Account(ctx context.Context, id string) (schema.Account, error) {
	if err := checkToken(id); err != nil {
		return schema.Account{}, err
	}
	return call[schema.Account](ctx, c, "ACCOUNT "+id, true)
}

func (c *Client) Summary(ctx context.Context, id string) (schema.AccountSummary, error) {
	if err := checkToken(id); err != nil {
		return schema.AccountSummary{}, err
	}
	return call[schema.AccountSummary](ctx, c, "SUMMARY "+id, true)
}

func (c *Client) Purchase(ctx context.Context, accountID, listingID string) (schema.PurchaseResult, error) {
	if err := errors.Join(checkToken(accountID), checkToken(listingID)); err != nil {
		return schema.PurchaseResult{}, err
	}
	return call[schema.PurchaseResult](ctx, c, fmt.Sprintf("BUY %s %s", accountID, listingID), false)
}

func (c *Client) SubmitUpload(ctx context.Context, accountID string, draft schema.UploadDraft) (schema.UploadOutcome, error) {
	if err := checkToken(accountID); err != nil {
		return schema.UploadOutcome{}, err
	}
	body, err := json.Marshal(draft)
	if err != nil {
		return schema.UploadOutcome{}, err
	}
	return call[schema.UploadOutcome](ctx, c, fmt.Sprintf("UPLOAD %s %s", accountID, body), false)
}

func (c *Client) Notification(ctx context.Context) (schema.Notification, bool, error) {
	n, err := call[*schema.Notification](ctx, c, "NOTIFY", true)
	if err != nil || n == nil {
		return schema.Notification{}, false, err
	}
	return *n, true, nil
}

// For returns a scope pinned to accountID.
func (c *Client) For(accountID string) AccountScope {
	return newScope(c, accountID)
}

// Close says goodbye and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

// checkToken rejects IDs that would break the line protocol.
func checkToken(s string) error {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return fmt.Errorf("%w: invalid id %q", ErrBadRequest, s)
	}
	return nil
}
