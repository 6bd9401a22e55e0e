package search

import (
	"bufio"
	"net"
	"time"
)

// ConnectTimeout bounds the client's attempt to reach the daemon socket
// before falling back to in-process search (spec §4.H: "if a hook cannot
// connect to the socket within 50 ms").
const ConnectTimeout = 50 * time.Millisecond

// Recommend queries the daemon at socketPath for req, falling back to an
// in-process search against fallback (which may be slow to build — the
// spec explicitly allows that for the fallback path, so long as the
// caller enforces its own handler latency budget around this call) if the
// socket can't be reached within ConnectTimeout.
func Recommend(socketPath string, req Request, fallback Retriever) (Response, error) {
	if resp, err := recommendViaSocket(socketPath, req); err == nil {
		return resp, nil
	}
	return recommendInProcess(req, fallback)
}

func recommendViaSocket(socketPath string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, ConnectTimeout)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := WriteFrame(conn, req); err != nil {
		return Response{}, err
	}

	r := bufio.NewReader(conn)
	var resp Response
	if err := ReadFrame(r, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func recommendInProcess(req Request, fallback Retriever) (Response, error) {
	if err := ValidateRequest(req); err != nil {
		return Response{}, err
	}
	start := time.Now()
	hits, err := fallback.Search(req.Query, req.Limit)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Results:   hits,
		Retriever: fallback.Name() + ":fallback",
		TookMs:    time.Since(start).Milliseconds(),
	}, nil
}
