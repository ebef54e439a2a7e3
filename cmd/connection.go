// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Connection is a byte link to the motor UART, either direct or bridged
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection is the motor UART on a local serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// Write blocks until the request has left the transmit buffer, so a
// command exiting right after a control request does not truncate it.
func (s *SerialConnection) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, err
	}
	if err := s.port.Drain(); err != nil {
		return n, fmt.Errorf("failed to drain serial port: %w", err)
	}
	return n, nil
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// Bridge limits. A UART chunk is far smaller than wsReadLimit; anything
// larger is not coming from a UART bridge.
const (
	wsReadLimit    = 4096
	wsWriteTimeout = 5 * time.Second
)

// WebSocketConnection carries the UART byte stream in binary WebSocket messages
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		// UART bytes only travel in binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens the motor UART at baudRate, 8N1, with an
// empty receive buffer
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	// Bytes queued before we opened belong to no request of ours
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a UART bridge connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	conn.SetReadLimit(wsReadLimit)
	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves the bridge password from the environment or prompts for it
func GetPassword() (string, error) {
	if pw := os.Getenv("SHADESTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection.
// It returns the connection and a description for display.
func OpenConnection(cs connectionSettings, logger *zap.Logger) (Connection, string, error) {
	if cs.URL != "" {
		password := ""
		if cs.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(cs.URL, cs.Username, password, cs.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		logger.Info("Connected", zap.String("url", cs.URL))
		return conn, fmt.Sprintf("WebSocket: %s", cs.URL), nil
	}

	if cs.Port != "" {
		conn, err := OpenSerialConnection(cs.Port, cs.Baud)
		if err != nil {
			return nil, "", err
		}

		logger.Info("Connected", zap.String("port", cs.Port), zap.Int("baud", cs.Baud))
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cs.Port, cs.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
