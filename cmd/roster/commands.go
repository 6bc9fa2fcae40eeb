package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/roster/department"
	"github.com/GoCodeAlone/roster/task"
)

// statusLabel renders a status for humans: "awaiting_approval" -> "Awaiting Approval".
func statusLabel(s task.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

func dueLabel(t *task.Task) string {
	if t.DueDate == nil {
		return "-"
	}
	return t.DueDate.Format(time.DateOnly)
}

// --- status / login ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]string
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "status:  %s\n", result["status"])
	fmt.Fprintf(c.Out, "version: %s\n", result["version"])
	if up := result["uptime"]; up != "" {
		fmt.Fprintf(c.Out, "uptime:  %s\n", up)
	}
	return nil
}

func (c *Client) cmdLogin(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: roster login <username> <password>")
	}
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := c.post("/api/auth/login", map[string]string{"username": args[0], "password": args[1]}, &resp); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, resp.Token)
	return nil
}

// --- task lists ---

func (c *Client) cmdTasks(args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	status := fs.String("status", "", "comma-separated statuses to include")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/api/tasks"
	if *status != "" {
		path += "?status=" + url.QueryEscape(*status)
	}
	var tasks []*task.Task
	if err := c.get(path, &tasks); err != nil {
		return err
	}
	c.printTasks(tasks)
	return nil
}

func (c *Client) cmdPending(_ []string) error {
	var tasks []*task.Task
	if err := c.get("/api/tasks/pending", &tasks); err != nil {
		return err
	}
	c.printTasks(tasks)
	return nil
}

func (c *Client) printTasks(tasks []*task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(c.Out, "no tasks")
		return
	}
	fmt.Fprintf(c.Out, "%-6s %-30s %-18s %-20s %-10s\n", "ID", "TITLE", "STATUS", "DEPARTMENT", "DUE")
	fmt.Fprintln(c.Out, strings.Repeat("-", 88))
	for _, t := range tasks {
		fmt.Fprintf(c.Out, "%-6d %-30s %-18s %-20s %-10s\n",
			t.ID,
			truncate(t.Title, 29),
			statusLabel(t.Status),
			truncate(t.DepartmentName, 19),
			dueLabel(t),
		)
	}
}

func printTask(w io.Writer, t *task.Task) {
	fmt.Fprintf(w, "id:          %d\n", t.ID)
	fmt.Fprintf(w, "title:       %s\n", t.Title)
	fmt.Fprintf(w, "status:      %s\n", statusLabel(t.Status))
	fmt.Fprintf(w, "department:  %s (%d)\n", t.DepartmentName, t.DepartmentID)
	fmt.Fprintf(w, "due:         %s\n", dueLabel(t))
	if d := t.DisplayDescription(); d != "" {
		fmt.Fprintf(w, "description: %s\n", d)
	}
	if t.CompletionNote != "" {
		fmt.Fprintf(w, "completion:  %s\n", t.CompletionNote)
	}
}

// --- task subcommands ---

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: roster task <show|create|complete|approve|reject|note|notes> ...")
	}
	sub, rest := args[0], args[1:]
	if sub == "create" {
		return c.taskCreate(rest)
	}
	if sub == "reject" {
		return c.taskReject(rest)
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: roster task %s <id>", sub)
	}
	id := url.PathEscape(rest[0])

	var t task.Task
	switch sub {
	case "show":
		if err := c.get("/api/tasks/"+id, &t); err != nil {
			return err
		}
		printTask(c.Out, &t)
	case "complete":
		if err := c.post("/api/tasks/"+id+"/complete", map[string]string{"note": joinFrom(rest, 1)}, &t); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "task %d is now %s\n", t.ID, statusLabel(t.Status))
	case "approve":
		if err := c.post("/api/tasks/"+id+"/approve", nil, &t); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "task %d is now %s\n", t.ID, statusLabel(t.Status))
	case "note":
		var n task.Note
		if err := c.post("/api/tasks/"+id+"/notes", map[string]string{"body": joinFrom(rest, 1)}, &n); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "added note %d\n", n.ID)
	case "notes":
		var notes []*task.Note
		if err := c.get("/api/tasks/"+id+"/notes", &notes); err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Fprintln(c.Out, "no notes")
		}
		for _, n := range notes {
			fmt.Fprintf(c.Out, "%s  user %-4d %s\n", n.CreatedAt.Format(time.DateTime), n.AuthorID, n.Body)
		}
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
	return nil
}

func (c *Client) taskCreate(args []string) error {
	fs := flag.NewFlagSet("task create", flag.ContinueOnError)
	dept := fs.Int64("dept", 0, "owning department id")
	due := fs.String("due", "", "due date (2006-01-02)")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	title := strings.Join(fs.Args(), " ")
	if title == "" || *dept <= 0 {
		return errors.New("usage: roster task create --dept <id> [--due <date>] [--desc <text>] <title>")
	}
	var t task.Task
	if err := c.post("/api/tasks", map[string]any{
		"title":         title,
		"description":   *desc,
		"department_id": *dept,
		"due_date":      *due,
	}, &t); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "created task %d\n", t.ID)
	return nil
}

func (c *Client) taskReject(args []string) error {
	fs := flag.NewFlagSet("task reject", flag.ContinueOnError)
	due := fs.String("due", "", "new due date (2006-01-02)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return errors.New("usage: roster task reject [--due <date>] <id> <reason>")
	}
	var t task.Task
	if err := c.post("/api/tasks/"+url.PathEscape(rest[0])+"/reject", map[string]string{
		"reason":       joinFrom(rest, 1),
		"new_due_date": *due,
	}, &t); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "task %d is now %s (due %s)\n", t.ID, statusLabel(t.Status), dueLabel(&t))
	return nil
}

// --- departments ---

func (c *Client) cmdDepartments(args []string) error {
	if len(args) > 0 {
		if args[0] != "create" || len(args) < 2 {
			return errors.New("usage: roster departments [create <name>]")
		}
		var d department.Department
		if err := c.post("/api/departments", map[string]string{"name": joinFrom(args, 1)}, &d); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "created department %d\n", d.ID)
		return nil
	}

	var depts []*department.Department
	if err := c.get("/api/departments", &depts); err != nil {
		return err
	}
	if len(depts) == 0 {
		fmt.Fprintln(c.Out, "no departments")
		return nil
	}
	fmt.Fprintf(c.Out, "%-6s %s\n", "ID", "NAME")
	for _, d := range depts {
		fmt.Fprintf(c.Out, "%-6s %s\n", strconv.FormatInt(d.ID, 10), d.Name)
	}
	return nil
}
