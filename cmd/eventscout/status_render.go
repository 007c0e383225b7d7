package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"eventscout/internal/preflight"
	"eventscout/internal/store"
)

// statusReport is everything "eventscout status" prints. Stats is nil when
// the store could not be opened.
type statusReport struct {
	Checks     []preflight.Result
	LLMSkipped bool
	Scheduler  schedulerView
	Stats      *store.Stats
}

type schedulerView struct {
	Enabled     bool
	RunAt       string
	Timezone    string
	Cities      []string
	WindowWeeks int
}

type statusLevel int

const (
	levelNote statusLevel = iota
	levelOK
	levelWarn
	levelFail
)

var levelTags = map[statusLevel]string{
	levelNote: "INFO",
	levelOK:   "OK",
	levelWarn: "WARN",
	levelFail: "ERROR",
}

var levelColors = map[statusLevel]string{
	levelNote: "\x1b[34m",
	levelOK:   "\x1b[32m",
	levelWarn: "\x1b[33m",
	levelFail: "\x1b[31m",
}

const (
	colorReset = "\x1b[0m"
	labelWidth = 20
)

type statusPrinter struct {
	color bool
	lines []string
}

func (p *statusPrinter) section(title string) {
	if len(p.lines) > 0 {
		p.lines = append(p.lines, "")
	}
	title = strings.TrimSpace(title)
	underline := strings.Repeat("-", len(title))
	if p.color {
		title = levelColors[levelNote] + title + colorReset
	}
	p.lines = append(p.lines, title, underline)
}

func (p *statusPrinter) row(label string, level statusLevel, detail string) {
	p.lines = append(p.lines, formatStatusRow(label, level, detail, p.color))
}

func formatStatusRow(label string, level statusLevel, detail string, color bool) string {
	tag := "[" + levelTags[level] + "]"
	if detail != "" {
		tag += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", labelWidth, label+":", tag)
	if color {
		return levelColors[level] + line + colorReset
	}
	return line
}

func renderStatusReport(r statusReport, color bool) string {
	p := &statusPrinter{color: color}

	p.section("Readiness")
	for _, check := range r.Checks {
		level := levelOK
		if !check.Passed {
			level = levelFail
		}
		p.row(check.Name, level, check.Detail)
	}
	if r.LLMSkipped {
		p.row("Model endpoints", levelWarn, "not checked (--skip-llm)")
	}

	p.section("Ingestion")
	if r.Scheduler.Enabled {
		p.row("Scheduler", levelNote, fmt.Sprintf("Daily at %s (%s)", r.Scheduler.RunAt, r.Scheduler.Timezone))
	} else {
		p.row("Scheduler", levelWarn, "Disabled")
	}
	p.row("Cities", levelNote, strings.Join(r.Scheduler.Cities, ", "))
	p.row("Window", levelNote, fmt.Sprintf("%d week(s) from today", r.Scheduler.WindowWeeks))

	if r.Stats != nil {
		p.section("Events")
		if r.Stats.Total == 0 {
			p.row("Total", levelWarn, "0 (run \"eventscout events sync\" to ingest)")
		} else {
			p.row("Total", levelNote, strconv.Itoa(r.Stats.Total))
		}
		for _, key := range sortedKeys(r.Stats.ByType) {
			p.row("Type "+key, levelNote, strconv.Itoa(r.Stats.ByType[key]))
		}
		for _, key := range sortedKeys(r.Stats.ByCity) {
			p.row("City "+key, levelNote, strconv.Itoa(r.Stats.ByCity[key]))
		}
	}
	return strings.Join(p.lines, "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shouldColorize reports whether writer is a terminal and NO_COLOR is unset.
func shouldColorize(writer io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
