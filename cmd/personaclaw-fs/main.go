package main

import (
	"fmt"
	"os"

	"github.com/Nyukimin/personaclaw/internal/toolserver/fs"
	"github.com/Nyukimin/personaclaw/pkg/mcp"
)

func main() {
	root := os.Getenv("PERSONACLAW_FS_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Filesystem server error: %v\n", err)
			os.Exit(1)
		}
		root = wd
	}

	svc, err := fs.NewService(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Filesystem server error: %v\n", err)
		os.Exit(1)
	}

	// stdoutはプロトコル専用。起動ログはstderrへ
	fmt.Fprintf(os.Stderr, "Starting Filesystem MCP Server (PID: %d)\n", os.Getpid())
	fmt.Fprintf(os.Stderr, "Project root: %s\n", svc.Root())

	srv := mcp.NewServer("Filesystem Server", "1.0.0")
	svc.Register(srv)

	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Filesystem server error: %v\n", err)
		os.Exit(1)
	}
}
