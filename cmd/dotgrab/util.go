package main

import (
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/benithors/dotgrab/internal/domain"
	"github.com/benithors/dotgrab/internal/watchlist"
)

// readEntries takes domains from args, else from the watch-list file, else
// from piped stdin. list is non-nil only when the file was used, since only
// then is there something to rewrite.
func readEntries(args []string, file string, stdin *os.File) (entries []string, list *watchlist.File, err error) {
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		entries = append(entries, a)
	}
	if len(entries) > 0 {
		return entries, nil, nil
	}

	if file = strings.TrimSpace(file); file != "" {
		list = &watchlist.File{Path: file}
		entries, err = list.Load()
		if err != nil {
			return nil, nil, err
		}
		return entries, list, nil
	}

	if stdin == nil || term.IsTerminal(int(stdin.Fd())) {
		// Nothing piped in.
		return nil, nil, nil
	}
	entries, err = domain.ReadLines(stdin)
	return entries, nil, err
}

// nonBlank counts entries that are worth processing.
func nonBlank(entries []string) int {
	n := 0
	for _, e := range entries {
		if strings.TrimSpace(e) != "" {
			n++
		}
	}
	return n
}
