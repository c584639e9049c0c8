package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/harekaze/dirq/internal/config"
	"github.com/harekaze/dirq/internal/daemon"
	"github.com/harekaze/dirq/internal/model"
	"github.com/harekaze/dirq/internal/queue"
	"github.com/harekaze/dirq/internal/setup"
	"github.com/harekaze/dirq/internal/status"
	"github.com/harekaze/dirq/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		runDaemon(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "submit":
		runSubmit(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "ping":
		runPing(os.Args[2:])
	case "shutdown":
		runShutdown(os.Args[2:])
	case "version":
		fmt.Printf("dirq %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dirq - filesystem-backed job queue

usage: dirq <command> [options]

commands:
  daemon    [--dir DIR] [--log-level LEVEL]     run the supervising daemon
  init      [--dir DIR] [--workers N]           create a queue root
  submit    [--dir DIR] [--type T] [--payload S | -]   enqueue a job
  status    [--dir DIR] [--json]                per-state entry counts
  ping      [--dir DIR]                         probe a running daemon
  shutdown  [--dir DIR]                         stop a running daemon
  version                                       print version`)
}

// parseDir extracts --dir from args, defaulting to the current directory.
// Remaining arguments are returned for the caller.
func parseDir(args []string) (string, []string) {
	dir := "."
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--dir" && i+1 < len(args) {
			dir = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return dir, rest
}

func loadConfig(root string) config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runDaemon(args []string) {
	root, rest := parseDir(args)
	logLevel := ""
	for i := 0; i < len(rest); i++ {
		if rest[i] == "--log-level" && i+1 < len(rest) {
			logLevel = rest[i+1]
			i++
			continue
		}
		fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dirq daemon [--dir DIR] [--log-level LEVEL]\n", rest[i])
		os.Exit(1)
	}

	cfg := loadConfig(root)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	d, err := daemon.New(root, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) {
	root, rest := parseDir(args)
	workers := 0
	for i := 0; i < len(rest); i++ {
		if rest[i] == "--workers" && i+1 < len(rest) {
			n, err := strconv.Atoi(rest[i+1])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid --workers value: %s\n", rest[i+1])
				os.Exit(1)
			}
			workers = n
			i++
			continue
		}
		fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dirq init [--dir DIR] [--workers N]\n", rest[i])
		os.Exit(1)
	}

	if err := setup.Run(root, workers); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("initialized queue root at %s\n", root)
}

func runSubmit(args []string) {
	root, rest := parseDir(args)

	jobType := ""
	payload := ""
	fromStdin := false
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == "--type" && i+1 < len(rest):
			jobType = rest[i+1]
			i++
		case rest[i] == "--payload" && i+1 < len(rest):
			payload = rest[i+1]
			i++
		case rest[i] == "-":
			fromStdin = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dirq submit [--dir DIR] [--type T] [--payload S | -]\n", rest[i])
			os.Exit(1)
		}
	}

	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			os.Exit(1)
		}
		payload = string(data)
	}

	cfg := loadConfig(root)
	storage, err := queue.Open(queue.Dirs{
		Inbox:    cfg.Queue.InboxDir,
		Progress: cfg.Queue.ProgressDir,
		Finished: cfg.Queue.FinishedDir,
		Failed:   cfg.Queue.FailedDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open queue: %v\n", err)
		os.Exit(1)
	}

	job := model.New(jobType, payload)
	if _, err := storage.Create(job); err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(job.ID)
}

func runStatus(args []string) {
	root, rest := parseDir(args)
	jsonOutput := false
	for _, a := range rest {
		if a == "--json" {
			jsonOutput = true
			continue
		}
		fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: dirq status [--dir DIR] [--json]\n", a)
		os.Exit(1)
	}

	cfg := loadConfig(root)
	if err := status.Run(root, cfg, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runPing(args []string) {
	root, _ := parseDir(args)
	resp := sendControl(root, "ping")

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(data["status"])
}

func runShutdown(args []string) {
	root, _ := parseDir(args)
	sendControl(root, "shutdown")
	fmt.Println("shutdown requested")
}

func sendControl(root, command string) *uds.Response {
	client := uds.NewClient(filepath.Join(root, config.SocketName))
	resp, err := client.SendCommand(command, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.Error.Code, resp.Error.Message)
		os.Exit(1)
	}
	return resp
}
