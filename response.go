package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

const serverSoftware = "httpd/0.1"

// Bodies up to this size are buffered in memory, which enables gzip and
// strong ETags. Anything larger is streamed straight from disk.
const maxBufferedBody = 1 << 20

// serveResource writes the success response for a resolved target. It
// returns the status actually sent plus any write error.
func serveResource(conn net.Conn, config Config, request Request, resource ResolvedTarget, keepAlive bool) (int, error) {
	if resource.FileSize <= maxBufferedBody {
		return serveBufferedResponse(conn, config, request, resource, keepAlive)
	}
	return serveStreamedResponse(conn, config, request, resource, keepAlive)
}

func serveBufferedResponse(conn net.Conn, config Config, request Request, resource ResolvedTarget, keepAlive bool) (int, error) {
	status := 200

	body, err := os.ReadFile(resource.LocalFilePath)
	if err != nil {
		return 500, serveErrorDocument(conn, config, 500)
	}
	contentLength := len(body)

	// The client sends If-None-Match with the last ETag it has for this
	// URL; when it still matches, a bodyless 304 tells it the cached copy
	// is fresh.
	if clientETag := request.Headers.Get("If-None-Match"); clientETag != "" && clientETag == resource.ETag {
		status = 304
		body = nil
		contentLength = 0
	}

	encoding := "identity"
	if status == 200 && request.Method == "GET" && acceptsGzip(request.Headers.Get("Accept-Encoding")) {
		compressed, err := gzipBytes(body)
		if err != nil {
			logger.Debug().Err(err).Msg("gzip failed, sending identity")
		} else {
			body = compressed
			contentLength = len(compressed)
			encoding = "gzip"
		}
	}

	headers := baseHeaders()
	headers.Add("Content-Type", resource.ContentType)
	headers.Add("Content-Length", strconv.Itoa(contentLength))
	if resource.ETag != "" {
		headers.Add("ETag", resource.ETag)
	}
	if encoding == "gzip" {
		headers.Add("Content-Encoding", "gzip")
		headers.Add("Vary", "Accept-Encoding")
	}
	addConnectionHeaders(headers, config, keepAlive)

	// HEAD gets the headers a GET would produce, minus the body.
	if request.Method == "HEAD" {
		body = nil
	}

	_, err = conn.Write(buildResponse(status, headers, body))
	return status, err
}

func serveStreamedResponse(conn net.Conn, config Config, request Request, resource ResolvedTarget, keepAlive bool) (int, error) {
	file, err := os.Open(resource.LocalFilePath)
	if err != nil {
		return 500, serveErrorDocument(conn, config, 500)
	}
	defer file.Close()

	status := 200
	contentLength := resource.FileSize
	if clientETag := request.Headers.Get("If-None-Match"); clientETag != "" && clientETag == resource.ETag {
		status = 304
		contentLength = 0
	}

	headers := baseHeaders()
	headers.Add("Content-Type", resource.ContentType)
	headers.Add("Content-Length", strconv.FormatInt(contentLength, 10))
	if resource.ETag != "" {
		headers.Add("ETag", resource.ETag)
	}
	addConnectionHeaders(headers, config, keepAlive)

	if _, err := conn.Write(buildResponse(status, headers, nil)); err != nil {
		return status, err
	}
	if request.Method == "HEAD" || status == 304 {
		return status, nil
	}

	// io.Copy uses sendfile when the destination is a TCP connection
	_, err = io.Copy(conn, file)
	return status, err
}

// buildResponse assembles the exact wire bytes: status line, headers in
// insertion order, blank line, body.
func buildResponse(status int, headers *headerList, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	headers.writeTo(&buf)
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

func baseHeaders() *headerList {
	h := &headerList{}
	h.Add("Server", serverSoftware)
	h.Add("Date", time.Now().UTC().Format(http.TimeFormat))
	return h
}

// Set keep-alive headers to notify the client whether the connection stays
// open and can be reused
func addConnectionHeaders(h *headerList, config Config, keepAlive bool) {
	if keepAlive {
		h.Add("Connection", "keep-alive")
		h.Add("Keep-Alive", fmt.Sprintf("timeout=%d, max=%d", config.timeout, config.maxRequestsPerConnection))
	} else {
		h.Add("Connection", "close")
	}
}

func serveErrorDocument(conn net.Conn, config Config, status int) error {
	body := errorDocument(status)

	headers := baseHeaders()
	headers.Add("Content-Type", "text/html; charset=utf-8")
	headers.Add("Content-Length", strconv.Itoa(len(body)))
	if status == 405 {
		headers.Add("Allow", "GET, HEAD")
	}
	headers.Add("Connection", "close")

	_, err := conn.Write(buildResponse(status, headers, body))
	return err
}

// errorDocument renders the minimal HTML body sent with every error
// response. Simple, efficient, refined.
func errorDocument(status int) []byte {
	text := http.StatusText(status)
	return []byte(fmt.Sprintf(
		"<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%d %s</title></head>\n"+
			"<body><h1>%d %s</h1><p>The requested resource could not be processed.</p></body></html>\n",
		status, text, status, text))
}
