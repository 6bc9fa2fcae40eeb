// Command roster is the roster CLI client.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GoCodeAlone/roster/internal/version"
)

const defaultServer = "http://localhost:9090"

func main() {
	var (
		serverURL = flag.String("server", envOr("ROSTER_SERVER", defaultServer), "roster server URL")
		token     = flag.String("token", os.Getenv("ROSTER_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := NewClient(*serverURL, *token, &http.Client{Timeout: 15 * time.Second})

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "pending":
		err = cli.cmdPending(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "departments":
		err = cli.cmdDepartments(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use rosterd to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `roster: task board CLI

Usage:
  roster [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:9090, or $ROSTER_SERVER)
  --token   <token>  JWT auth token (or $ROSTER_TOKEN)

Commands:
  version                                   print version
  status                                    show server status
  login <username> <password>               print a token for $ROSTER_TOKEN
  tasks [--status open,rejected]            list visible tasks, soonest due first
  pending                                   list tasks awaiting approval (admin)
  task show <id>                            show a task
  task create --dept <id> [--due <date>] [--desc <text>] <title>
  task complete <id> [note]                 submit a task for approval
  task approve <id>                         approve a task (admin)
  task reject [--due <date>] <id> <reason>  reject a task (admin)
  task note <id> <text>                     add a note
  task notes <id>                           list notes
  departments                               list departments
  departments create <name>                 create a department (admin)
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("roster %s\n", version.String())
	return nil
}

// --- helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// joinFrom joins args[n:] with spaces, or returns "".
func joinFrom(args []string, n int) string {
	if len(args) <= n {
		return ""
	}
	return strings.Join(args[n:], " ")
}
