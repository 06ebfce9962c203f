package main

import (
	"fmt"
	"os"

	"github.com/Nyukimin/personaclaw/internal/toolserver/websearch"
	"github.com/Nyukimin/personaclaw/pkg/mcp"
)

func main() {
	// stdoutはプロトコル専用。起動ログはstderrへ
	fmt.Fprintf(os.Stderr, "Starting Web Search MCP Server (PID: %d)\n", os.Getpid())
	fmt.Fprintln(os.Stderr, "Using DuckDuckGo search API")

	srv := mcp.NewServer("Web Search Server", "1.0.0")
	websearch.NewSearcher().Register(srv)

	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Web Search server error: %v\n", err)
		os.Exit(1)
	}
}
