package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Cap on declared request body size, so a hostile Content-Length cannot
// make us allocate arbitrary amounts of memory.
const maxRequestBody = 1 << 20

type Request struct {
	Method  string
	Target  string // path component of the request target, still percent-encoded
	Query   string
	Proto   string
	Headers http.Header
	Body    []byte
}

// parseRequest reads one full request off the connection's reader. It only
// reads; resolving the target and writing the response happen elsewhere.
// A connection closed before a request line arrives surfaces as io.EOF,
// which is not an error condition.
func parseRequest(reader *bufio.Reader) (Request, error) {
	method, rawTarget, proto, err := parseRequestLine(reader)
	if err != nil {
		return Request{}, err
	}

	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return Request{}, fmt.Errorf("%w: unsupported protocol version %q", errBadRequest, proto)
	}

	target, query := rawTarget, ""
	if i := strings.IndexByte(rawTarget, '?'); i >= 0 {
		target, query = rawTarget[:i], rawTarget[i+1:]
	}
	if target == "" || target[0] != '/' {
		return Request{}, fmt.Errorf("%w: target %q is not origin-form", errBadRequest, rawTarget)
	}
	for i := 0; i < len(target); i++ {
		if target[i] < 0x20 || target[i] == 0x7f {
			return Request{}, fmt.Errorf("%w: control byte in target", errBadTarget)
		}
	}

	headers, err := parseRequestHeaders(reader)
	if err != nil {
		return Request{}, err
	}

	body, err := readRequestBody(reader, headers)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Method:  method,
		Target:  target,
		Query:   query,
		Proto:   proto,
		Headers: headers,
		Body:    body,
	}, nil
}

func parseRequestLine(reader *bufio.Reader) (string, string, string, error) {
	// Read the Request-Line (e.g., "GET /hello.txt HTTP/1.1")
	requestLine, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			// The peer went away before sending a full request line.
			return "", "", "", io.EOF
		}
		return "", "", "", err
	}

	requestLine = strings.TrimRight(requestLine, "\r\n")
	if requestLine == "" {
		return "", "", "", fmt.Errorf("%w: empty request line", errBadRequest)
	}

	parts := strings.Split(requestLine, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: invalid request line %q", errBadRequest, requestLine)
	}

	return parts[0], parts[1], parts[2], nil
}

func parseRequestHeaders(reader *bufio.Reader) (http.Header, error) {
	headers := http.Header{}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Truncated mid-headers, same as hanging up.
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line means we reached the end of the headers
		if line == "" {
			return headers, nil
		}

		// Split in exactly two parts because there might be colons in the
		// values (cookies, user agent, etc)
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line without a colon %q", errBadRequest, line)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty header name", errBadRequest)
		}

		// Set, not Add: a repeated header keeps the last value.
		headers.Set(name, strings.TrimSpace(value))
	}
}

// readRequestBody consumes a Content-Length body so keep-alive framing
// stays aligned even for methods we end up rejecting.
func readRequestBody(reader *bufio.Reader, headers http.Header) ([]byte, error) {
	raw := headers.Get("Content-Length")
	if raw == "" {
		return nil, nil
	}

	length, err := strconv.Atoi(raw)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: invalid Content-Length %q", errBadRequest, raw)
	}
	if length > maxRequestBody {
		return nil, fmt.Errorf("%w: declared body of %d bytes exceeds the limit", errBadRequest, length)
	}
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, fmt.Errorf("%w: truncated request body", errBadRequest)
	}
	return body, nil
}
