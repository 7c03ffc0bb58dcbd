package main

import (
	"bytes"
	"fmt"
	"strings"
)

// headerList keeps response headers in insertion order so the same response
// always serializes to the same bytes. http.Header is a map and iterates in
// random order, which would make the wire output non-deterministic.
type headerField struct {
	name  string
	value string
}

type headerList struct {
	fields []headerField
}

func (h *headerList) Add(name, value string) {
	h.fields = append(h.fields, headerField{name, value})
}

// Set replaces the first field with a matching name, or appends.
func (h *headerList) Set(name, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].name, name) {
			h.fields[i].value = value
			return
		}
	}
	h.Add(name, value)
}

func (h *headerList) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

func (h *headerList) writeTo(buf *bytes.Buffer) {
	for _, f := range h.fields {
		fmt.Fprintf(buf, "%s: %s\r\n", f.name, f.value)
	}
}
