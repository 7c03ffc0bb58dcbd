package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
)

const (
	defaultPort         = 8080
	defaultDocumentRoot = "www"
)

// Config is built once at startup and shared read-only by every connection
// handler. Nothing mutates it after loadConfig returns.
type Config struct {
	port                     int
	documentRoot             string
	timeout                  int
	maxRequestsPerConnection int
	indexFile                string
	strongETag               bool
	verbose                  bool
}

// loadConfig parses `httpd [flags] [port] [document_root]`. The document
// root is made absolute here so the resolver never has to care about the
// working directory.
func loadConfig(args []string) (Config, error) {
	c := Config{}

	fs := flag.NewFlagSet("httpd", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: httpd [flags] [port] [document_root]")
		fs.PrintDefaults()
	}
	fs.IntVar(&c.timeout, "timeout", 10, "seconds an idle connection is kept open")
	fs.IntVar(&c.maxRequestsPerConnection, "max-requests", 100, "requests served per connection before it is closed")
	fs.StringVar(&c.indexFile, "index", "index.html", "file served for directory requests")
	fs.BoolVar(&c.strongETag, "strong-etag", false, "hash file contents for ETags instead of path and mtime")
	fs.BoolVar(&c.verbose, "v", false, "print debugging messages")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	c.port = defaultPort
	if fs.NArg() > 0 {
		port, err := strconv.Atoi(fs.Arg(0))
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("invalid port %q, use 1-65535", fs.Arg(0))
		}
		c.port = port
	}

	root := defaultDocumentRoot
	if fs.NArg() > 1 {
		root = fs.Arg(1)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("invalid document root %q: %w", root, err)
	}
	c.documentRoot = absRoot

	if c.timeout < 1 {
		return Config{}, fmt.Errorf("invalid timeout %d, must be at least 1 second", c.timeout)
	}
	if c.maxRequestsPerConnection < 1 {
		return Config{}, fmt.Errorf("invalid max-requests %d, must be at least 1", c.maxRequestsPerConnection)
	}
	if c.indexFile == "" || c.indexFile != filepath.Base(c.indexFile) {
		return Config{}, fmt.Errorf("invalid index file %q, must be a bare file name", c.indexFile)
	}

	return c, nil
}
