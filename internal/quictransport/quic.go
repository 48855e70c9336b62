package quictransport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// ALPNProtocol is the Application-Layer Protocol Negotiation identifier
	// for the sync protocol over QUIC.
	ALPNProtocol = "syncserv-quic-v1"
)

// ServerTLSConfig returns a TLS configuration for the QUIC listener.
// Uses a self-signed certificate for now (insecure).
func ServerTLSConfig() (*tls.Config, error) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("generate self-signed certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocol},
	}, nil
}

// ClientTLSConfig returns a TLS configuration for QUIC clients.
// Uses InsecureSkipVerify for now (insecure).
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ALPNProtocol},
	}
}

// DefaultQUICConfig returns the QUIC settings for sync sessions. The QUIC
// idle timeout sits above the protocol's transfer idle timeout so that
// liveness stays the application watchdog's decision, not the transport's.
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: 10 * time.Second,
		MaxIdleTimeout:  15 * time.Minute,
	}
}

// generateSelfSignedCert generates a self-signed certificate for the
// listener.
func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"syncserv"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour), // Valid for 1 year
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
	}, nil
}

// Listen opens a UDP socket on addr and wraps it in a QUIC listener.
func Listen(addr string, logger *slog.Logger) (*quic.Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	tlsConfig, err := ServerTLSConfig()
	if err != nil {
		udpConn.Close()
		return nil, err
	}

	listener, err := quic.Listen(udpConn, tlsConfig, DefaultQUICConfig())
	if err != nil {
		udpConn.Close()
		logger.Error("QUIC listen failed", "error", err, "addr", addr)
		return nil, err
	}

	logger.Info("QUIC listener created", "local_addr", listener.Addr())
	return listener, nil
}

// Serve accepts QUIC connections and hands each connection's first
// bidirectional stream, wrapped as a byte-stream transport, to handle.
func Serve(ctx context.Context, listener *quic.Listener, logger *slog.Logger, handle func(*StreamConn)) error {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go func() {
			stream, err := conn.AcceptStream(ctx)
			if err != nil {
				logger.Debug("failed to accept sync stream", "remote", conn.RemoteAddr(), "error", err)
				_ = conn.CloseWithError(0, "no sync stream")
				return
			}
			handle(NewStreamConn(conn, stream))
		}()
	}
}

// Dial connects to a QUIC sync server and opens the session stream.
// Used by tests and client tooling.
func Dial(ctx context.Context, addr string, logger *slog.Logger) (*StreamConn, error) {
	conn, err := quic.DialAddr(ctx, addr, ClientTLSConfig(), DefaultQUICConfig())
	if err != nil {
		logger.Debug("QUIC dial failed", "error", err, "addr", addr)
		return nil, fmt.Errorf("quic dial: %w", err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no sync stream")
		return nil, fmt.Errorf("open sync stream: %w", err)
	}
	return NewStreamConn(conn, stream), nil
}

// StreamConn exposes one QUIC stream as the byte-stream transport consumed
// by the protocol worker. Closing it tears down the whole connection, which
// is what the idle watchdog relies on.
type StreamConn struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func NewStreamConn(conn *quic.Conn, stream *quic.Stream) *StreamConn {
	return &StreamConn{conn: conn, stream: stream}
}

func (c *StreamConn) Read(p []byte) (int, error) {
	n, err := c.stream.Read(p)
	if err != nil && !errors.Is(err, context.Canceled) {
		err = closedError(err)
	}
	return n, err
}

func (c *StreamConn) Write(p []byte) (int, error) {
	return c.stream.Write(p)
}

func (c *StreamConn) Close() error {
	return c.conn.CloseWithError(0, "session closed")
}

func (c *StreamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// closedError folds QUIC teardown errors into net.ErrClosed so the worker
// classifies them as a closed transport rather than a retryable read error.
func closedError(err error) error {
	var appErr *quic.ApplicationError
	var idleErr *quic.IdleTimeoutError
	var streamErr *quic.StreamError
	if errors.As(err, &appErr) || errors.As(err, &idleErr) || errors.As(err, &streamErr) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", net.ErrClosed, err)
	}
	return err
}
