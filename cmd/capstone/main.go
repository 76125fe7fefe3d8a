// capstone: project tracker for capstone teams.
//
// Tracks milestones, features, functions and tasks, keeps task
// dependencies acyclic, and rolls task status up into progress.
//
// Usage:
//
//	capstone serve             # HTTP/JSON API
//	capstone mcp               # MCP server (stdio transport)
//	capstone import plan.yaml  # load a project plan
//	capstone gantt <project>   # print the timeline
//	capstone update            # install the latest release
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
