package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const dialTimeout = 2 * time.Second

// Call connects to the holder at socketPath, sends one request, and
// returns its response. Each call is a fresh connection, matching the
// holder's one-request-per-connection protocol.
func Call(socketPath string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to session socket: %w", err)
	}
	defer conn.Close()

	data, err := encode(req)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("holder closed connection without a response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Ping checks whether the holder at socketPath answers within a short
// deadline, without caring about the child process's own liveness.
func Ping(socketPath string) bool {
	resp, err := Call(socketPath, Request{Op: OpPing})
	return err == nil && resp.OK && resp.Alive
}

// Exec runs command to completion in the session and returns its
// captured output.
func Exec(socketPath, command string) (Response, error) {
	return Call(socketPath, Request{Op: OpExec, Command: command})
}

// Write sends raw bytes to the session's stdin (the legacy byte-stream
// API, for REPLs that need incremental interaction).
func Write(socketPath, data string) error {
	resp, err := Call(socketPath, Request{Op: OpWrite, Data: data})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("write rejected: %s", resp.Error)
	}
	return nil
}

// Read drains up to maxBytes of unread output (0 means unbounded).
func Read(socketPath string, maxBytes int) (string, error) {
	resp, err := Call(socketPath, Request{Op: OpRead, MaxBytes: maxBytes})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("read rejected: %s", resp.Error)
	}
	return resp.Data, nil
}

// End asks the holder to tear itself down.
func End(socketPath string) error {
	resp, err := Call(socketPath, Request{Op: OpEnd})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("end rejected: %s", resp.Error)
	}
	return nil
}
