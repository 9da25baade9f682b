package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"starfolio/navigator/tools/replay_player"
)

func main() {
	from := flag.Uint64("from", 0, "first tick to print")
	to := flag.Uint64("to", 0, "last tick to print; 0 prints to the end")
	mode := flag.String("mode", "timeline", "output: timeline, summary or json")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <recording dir or manifest.json>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	bundle, err := replayplayer.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	steps := bundle.Window(*from, *to)

	switch *mode {
	case "summary":
		visited := bundle.Visited()
		if len(visited) == 0 {
			visited = []string{"nothing"}
		}
		fmt.Printf("%s: %d steps, %d in window, visited %s\n", bundle.Header.SessionID, len(bundle.Steps), len(steps), strings.Join(visited, ", "))
	case "json":
		bundle.Steps = steps
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bundle); err != nil {
			fmt.Fprintln(os.Stderr, "encode error:", err)
			os.Exit(3)
		}
	case "timeline":
		for _, step := range steps {
			fmt.Println(step.Describe())
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}
}
