package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/benithors/dotgrab/internal/domain"
	"github.com/benithors/dotgrab/internal/outcome"
)

type outputFormat int

const (
	formatTable outputFormat = iota
	formatNDJSON
	formatJSON
	formatPlain
)

// parseFormat resolves "auto" to a table on a terminal and NDJSON otherwise.
func parseFormat(flagVal string, stdout *os.File) (outputFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(flagVal)) {
	case "table":
		return formatTable, true
	case "ndjson", "jsonl":
		return formatNDJSON, true
	case "json":
		return formatJSON, true
	case "plain":
		return formatPlain, true
	case "auto", "":
	default:
		return 0, false
	}

	if term.IsTerminal(int(stdout.Fd())) {
		return formatTable, true
	}
	return formatNDJSON, true
}

func writeReport(w io.Writer, format outputFormat, records []outcome.Record) error {
	switch format {
	case formatNDJSON:
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case formatJSON:
		if records == nil {
			records = []outcome.Record{}
		}
		return json.NewEncoder(w).Encode(records)
	case formatPlain:
		for _, r := range records {
			// Stable, line-oriented output for piping.
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Domain, r.Status, r.State, orderText(r), r.Reason); err != nil {
				return err
			}
		}
		return nil
	case formatTable:
		fallthrough
	default:
		tw := domain.NewTabWriter(w)
		fmt.Fprintln(tw, "DOMAIN\tSTATUS\tSTATE\tORDER\tPRICE\tPAYMENT\tDETAIL")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Domain, r.Status, r.State, orderText(r), r.Price, r.PaymentMean, r.Reason)
		}
		return tw.Flush()
	}
}

func orderText(r outcome.Record) string {
	if r.OrderID == 0 {
		return ""
	}
	return "#" + strconv.FormatInt(r.OrderID, 10)
}
