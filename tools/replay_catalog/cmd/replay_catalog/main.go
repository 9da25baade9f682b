package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"starfolio/navigator/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", "recordings", "recording root written by the navigator")
	session := flag.String("session", "", "only list recordings flown by this pilot id")
	within := flag.Duration("within", 0, "only list recordings started within this long ago")
	tuning := flag.Bool("tuning", false, "print the tuning each closed recording was flown with")
	asJSON := flag.Bool("json", false, "emit JSON instead of a summary")
	flag.Parse()

	filter := replaycatalog.Filter{SessionID: *session}
	if *within > 0 {
		filter.Since = time.Now().Add(-*within)
	}
	entries, err := replaycatalog.ListFiltered(*root, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *asJSON {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(append(payload, '\n'))
		return
	}
	if len(entries) == 0 {
		fmt.Printf("no recordings under %s\n", *root)
		return
	}
	for _, entry := range entries {
		fmt.Print(entry.Summary())
		if *tuning {
			for _, key := range entry.Header.Tuning.Keys() {
				fmt.Printf("    %s = %g\n", key, entry.Header.Tuning[key])
			}
		}
	}
}
