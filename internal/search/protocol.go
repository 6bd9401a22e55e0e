// Package search implements the Search Service (spec §4.H): a long-lived
// unix-socket daemon holding a hybrid lexical+vector retriever in memory,
// plus the length-prefixed JSON wire protocol clients use to query it and
// an in-process fallback for callers that cannot connect in time.
package search

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single length-prefixed frame to guard against a
// corrupt or hostile length prefix driving an unbounded allocation.
const MaxFrameBytes = 4 << 20 // 4 MiB

// Request is the wire request (spec §4.H).
type Request struct {
	Op        string `json:"op"`
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	Namespace string `json:"namespace"`
}

// Hit is one ranked result.
type Hit struct {
	Policy   string  `json:"policy"`
	Section  string  `json:"section,omitempty"`
	Question string  `json:"question,omitempty"`
	Distance float64 `json:"distance"`
}

// Response is the wire response on success.
type Response struct {
	Results  []Hit  `json:"results"`
	Retriever string `json:"retriever"`
	TookMs   int64  `json:"took_ms"`
}

// ErrorKind enumerates the wire error kinds (spec §4.H).
type ErrorKind string

const (
	ErrInvalidQuery ErrorKind = "invalid_query"
	ErrIndexMissing ErrorKind = "index_missing"
	ErrInternal     ErrorKind = "internal"
)

// ErrorEnvelope is the wire error shape.
type ErrorEnvelope struct {
	Error struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	} `json:"error"`
}

func NewErrorEnvelope(kind ErrorKind, message string) ErrorEnvelope {
	e := ErrorEnvelope{}
	e.Error.Kind = kind
	e.Error.Message = message
	return e
}

// MinQueryLen is the minimum accepted query length (spec §4.H: "query:
// string (>= 10 chars)").
const MinQueryLen = 10

// ValidateRequest checks the request shape against spec §4.H's contract.
func ValidateRequest(req Request) error {
	if req.Op != "recommend" {
		return fmt.Errorf("unsupported op %q", req.Op)
	}
	if len(req.Query) < MinQueryLen {
		return fmt.Errorf("query must be at least %d characters", MinQueryLen)
	}
	if req.Limit < 1 {
		return fmt.Errorf("limit must be >= 1")
	}
	if req.Namespace != "policies" {
		return fmt.Errorf("unsupported namespace %q", req.Namespace)
	}
	return nil
}

// WriteFrame writes v as a 4-byte big-endian length prefix followed by its
// JSON encoding, the length-prefixed wire framing spec §4.H specifies.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("search: marshal frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("search: write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("search: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r into v.
func ReadFrame(r *bufio.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("search: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return fmt.Errorf("search: frame of %d bytes exceeds max %d", n, MaxFrameBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("search: read frame body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("search: decode frame: %w", err)
	}
	return nil
}
