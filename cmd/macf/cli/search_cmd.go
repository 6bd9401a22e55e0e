package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maceff/macf/internal/paths"
	"github.com/maceff/macf/internal/search"
)

// newSearchCmd builds `macf search {start,stop,status,recommend}`, the
// human/script-facing side of the Search Service (spec §4.H).
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Manage and query the policy search service",
	}
	cmd.AddCommand(newSearchStartCmd())
	cmd.AddCommand(newSearchStopCmd())
	cmd.AddCommand(newSearchStatusCmd())
	cmd.AddCommand(newSearchRecommendCmd())
	return cmd
}

func newSearchStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the search service daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agentHome, err := paths.AgentHome()
			if err != nil {
				return NewSilentError(err)
			}
			frameworkRoot, err := paths.FrameworkRoot()
			if err != nil {
				return NewSilentError(err)
			}

			retriever := search.NewHybridRetriever(search.NewHashEmbedder(128, 3), search.DefaultWeight)
			docs, err := loadPolicyDocs(frameworkRoot)
			if err != nil {
				return NewSilentError(err)
			}
			if err := retriever.Build(docs); err != nil {
				return NewSilentError(err)
			}

			socketPath := search.SocketPath(agentHome)
			d := search.NewDaemon(socketPath, search.PIDPath(agentHome), retriever)

			ctx, cancel := context.WithCancel(cmd.Context())
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "search service listening on %s (%d documents indexed)\n", socketPath, len(docs))
			if err := d.Start(ctx); err != nil {
				return NewSilentError(err)
			}
			return nil
		},
	}
}

func newSearchStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running search service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agentHome, err := paths.AgentHome()
			if err != nil {
				return NewSilentError(err)
			}
			if err := search.StopRunning(search.PIDPath(agentHome), search.SocketPath(agentHome)); err != nil {
				return NewSilentError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "search service stopped")
			return nil
		},
	}
}

func newSearchStatusCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "status",
		Short: "Check whether the search service is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agentHome, err := paths.AgentHome()
			if err != nil {
				return NewSilentError(err)
			}
			st := search.CheckStatus(search.PIDPath(agentHome), search.SocketPath(agentHome))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(st)
			}
			if st.Running {
				fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d)\n", st.PID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not running")
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return c
}

func newSearchRecommendCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "recommend [query]",
		Short: "Query the policy search service (socket if reachable, else in-process fallback)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return NewSilentError(err)
			}
			frameworkRoot, err := paths.FrameworkRoot()
			if err != nil {
				return NewSilentError(err)
			}

			fallback := search.NewHybridRetriever(search.NewHashEmbedder(128, 3), search.DefaultWeight)
			docs, err := loadPolicyDocs(frameworkRoot)
			if err != nil {
				return NewSilentError(err)
			}
			if err := fallback.Build(docs); err != nil {
				return NewSilentError(err)
			}

			start := time.Now()
			resp, err := search.Recommend(search.SocketPath(rt.agentHome), search.Request{
				Op:        "recommend",
				Query:     args[0],
				Limit:     limit,
				Namespace: "policies",
			}, fallback)
			rt.metrics.ObserveSearchLatency(time.Since(start).Seconds())
			if err != nil {
				return NewSilentError(err)
			}
			rt.metrics.RecordSearchQuery(searchPath(resp.Retriever))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	c.Flags().IntVar(&limit, "limit", 5, "maximum number of results")
	return c
}

func searchPath(retriever string) string {
	if strings.HasSuffix(retriever, ":fallback") {
		return "in_process"
	}
	return "socket"
}

// loadPolicyDocs reads every *.md file under frameworkRoot/policies,
// splitting each on "## " headers into one search.Document per section so
// a hit can point at a specific section rather than a whole policy file.
func loadPolicyDocs(frameworkRoot string) ([]search.Document, error) {
	dir := filepath.Join(frameworkRoot, "policies")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search: read policies dir: %w", err)
	}

	var docs []search.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		policy := strings.TrimSuffix(entry.Name(), ".md")
		path := filepath.Join(dir, entry.Name())
		sections, err := splitSections(path)
		if err != nil {
			return nil, err
		}
		for _, s := range sections {
			docs = append(docs, search.Document{Policy: policy, Section: s.heading, Text: s.body})
		}
	}
	return docs, nil
}

type policySection struct {
	heading string
	body    string
}

func splitSections(path string) ([]policySection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("search: open %s: %w", path, err)
	}
	defer f.Close()

	var sections []policySection
	var cur policySection
	var body strings.Builder

	flush := func() {
		if cur.heading != "" || body.Len() > 0 {
			cur.body = body.String()
			sections = append(sections, cur)
		}
		body.Reset()
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			flush()
			cur = policySection{heading: strings.TrimPrefix(line, "## ")}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("search: scan %s: %w", path, err)
	}
	return sections, nil
}
