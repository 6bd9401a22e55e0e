package eventlog

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/maceff/macf/internal/macferr"
)

// Reader streams Events from the log without ever locking: spec §4.C
// requires readers to "open independently, must not hold locks". A
// missing file is not an error — it yields an empty sequence.
type Reader struct {
	path string
}

// NewReader returns a Reader targeting path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Stream reads every well-formed line in the log and calls fn for each
// decoded Event, in append order (or reverse append order if reverse is
// true). Malformed lines are skipped, not reported as an error — this is
// the "tolerate partial tail lines" invariant. Stream is restartable:
// every call re-opens the file from the start.
func (r *Reader) Stream(reverse bool, fn func(Event) error) error {
	lines, err := r.readLines()
	if err != nil {
		return err
	}
	if reverse {
		for i := len(lines) - 1; i >= 0; i-- {
			if err := r.decodeAndCall(lines[i], fn); err != nil {
				return err
			}
		}
		return nil
	}
	for _, line := range lines {
		if err := r.decodeAndCall(line, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) decodeAndCall(line []byte, fn func(Event) error) error {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	e, err := ParseEvent(line)
	if err != nil {
		// Malformed line: skip silently per spec §4.C failure semantics.
		return nil
	}
	return fn(e)
}

// readLines reads the whole file into memory as a slice of lines. The log
// is append-only JSONL intended for forensic/offline use (§4.C explicitly
// allows O(n) scans), so a constant-memory streaming scanner is used for
// the read itself but the full line slice is materialized to support
// Stream(reverse=true) without a second pass.
func (r *Reader) readLines() ([][]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &macferr.IOErr{Op: "open", Err: err}
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, &macferr.IOErr{Op: "scan", Err: err}
	}
	return lines, nil
}

// Filters composes the conjunctive predicate set from spec §4.C's query
// operation. Zero-value fields are "unset" and impose no constraint; use
// the pointer/empty-string convention documented per field.
type Filters struct {
	EventName    string  // exact match on Event.EventName, "" = unset
	BreadcrumbC  *int    // breadcrumb.c == N
	BreadcrumbG  string  // breadcrumb.g == hex, "" = unset
	BreadcrumbS  string  // breadcrumb.s == hash, "" = unset
	BreadcrumbP  string  // breadcrumb.p == uuid, "" = unset
	TimestampGE  *float64
	TimestampLE  *float64
}

// Match reports whether e satisfies every set constraint in f.
// Readers SHOULD short-circuit via breadcrumb string Contains before full
// decode where possible (spec §4.C); Match itself operates post-decode and
// is the authoritative check.
func (f Filters) Match(e Event) bool {
	if f.EventName != "" && e.EventName != f.EventName {
		return false
	}
	if f.TimestampGE != nil && e.Timestamp < *f.TimestampGE {
		return false
	}
	if f.TimestampLE != nil && e.Timestamp > *f.TimestampLE {
		return false
	}
	if f.BreadcrumbC != nil || f.BreadcrumbG != "" || f.BreadcrumbS != "" || f.BreadcrumbP != "" {
		c, err := e.BreadcrumbComponents()
		if err != nil {
			return false
		}
		if f.BreadcrumbC != nil && c.Cycle != *f.BreadcrumbC {
			return false
		}
		if f.BreadcrumbG != "" && c.Git != f.BreadcrumbG {
			return false
		}
		if f.BreadcrumbS != "" && c.Session != f.BreadcrumbS {
			return false
		}
		if f.BreadcrumbP != "" && c.Prompt != f.BreadcrumbP {
			return false
		}
	}
	return true
}

// QuickReject does a cheap breadcrumb-substring pre-check before the full
// decode+Match pass, per spec §4.C's SHOULD. It never produces a false
// negative: it only rejects lines that cannot possibly match a set
// breadcrumb constraint.
func (f Filters) quickReject(line []byte) bool {
	if f.BreadcrumbS != "" && !bytes.Contains(line, []byte("s_"+f.BreadcrumbS)) {
		return true
	}
	if f.BreadcrumbG != "" && !bytes.Contains(line, []byte("g_"+f.BreadcrumbG)) {
		return true
	}
	if f.BreadcrumbP != "" && !bytes.Contains(line, []byte("p_"+f.BreadcrumbP)) {
		return true
	}
	if f.EventName != "" && !bytes.Contains(line, []byte(`"event":"`+f.EventName+`"`)) {
		return true
	}
	return false
}

// Query returns every Event in append order matching f.
func (r *Reader) Query(f Filters) ([]Event, error) {
	lines, err := r.readLines()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 || f.quickReject(line) {
			continue
		}
		e, err := ParseEvent(line)
		if err != nil {
			continue
		}
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetOp names a query_set combination mode (spec §4.C).
type SetOp string

const (
	SetUnion        SetOp = "union"
	SetIntersection SetOp = "intersection"
	SetSubtraction  SetOp = "subtraction"
)

// QuerySet evaluates each of queries against the log and combines the
// result sets with op. Event identity for set membership is the raw
// serialized line (spec §4.C: "file offset, or equivalently, full
// serialized line"), so two structurally-identical events written twice
// are distinct members; order is preserved by first-occurrence append
// order among the combined lines.
func (r *Reader) QuerySet(queries []Filters, op SetOp) ([]Event, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	resultSets := make([]map[string]Event, len(queries))
	order := make([]string, 0)
	seenOrder := map[string]bool{}

	for i, q := range queries {
		evs, err := r.Query(q)
		if err != nil {
			return nil, err
		}
		m := make(map[string]Event, len(evs))
		for _, e := range evs {
			key := string(e.Raw())
			m[key] = e
			if !seenOrder[key] {
				seenOrder[key] = true
				order = append(order, key)
			}
		}
		resultSets[i] = m
	}

	var combined map[string]Event
	switch op {
	case SetUnion:
		combined = map[string]Event{}
		for _, m := range resultSets {
			for k, v := range m {
				combined[k] = v
			}
		}
	case SetIntersection:
		combined = map[string]Event{}
		for k, v := range resultSets[0] {
			inAll := true
			for _, m := range resultSets[1:] {
				if _, ok := m[k]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				combined[k] = v
			}
		}
	case SetSubtraction:
		combined = map[string]Event{}
		for k, v := range resultSets[0] {
			excluded := false
			for _, m := range resultSets[1:] {
				if _, ok := m[k]; ok {
					excluded = true
					break
				}
			}
			if !excluded {
				combined[k] = v
			}
		}
	default:
		return nil, &macferr.MalformedInput{Reason: "eventlog: unknown set op " + string(op)}
	}

	out := make([]Event, 0, len(combined))
	for _, key := range order {
		if e, ok := combined[key]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// State is the forward-scan reconstruction result of reconstruct_state_at
// (spec §4.C): the slow-changing fields as of timestamp t.
type State struct {
	SessionID string
	Cycle     int
	AsOf      float64
}

// ReconstructStateAt forward-scans the log up to timestamp t (inclusive),
// updating SessionID and Cycle whenever a session_started, migration_detected,
// or compaction_detected event is seen, per spec §4.D's authoritative
// sources for those fields. O(n) by design — forensic use only, never on
// the hot path.
func (r *Reader) ReconstructStateAt(t float64) (State, error) {
	st := State{AsOf: t}
	err := r.Stream(false, func(e Event) error {
		if e.Timestamp > t {
			return nil
		}
		switch e.EventName {
		case "session_started", "migration_detected":
			if c, cerr := e.BreadcrumbComponents(); cerr == nil {
				st.SessionID = c.Session
				st.Cycle = c.Cycle
			}
		case "compaction_detected":
			st.Cycle++
			if c, cerr := e.BreadcrumbComponents(); cerr == nil {
				st.SessionID = c.Session
			}
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return st, nil
}
