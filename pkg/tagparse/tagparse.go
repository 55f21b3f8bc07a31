// Package tagparse extracts bracketed command tags from model output.
//
// The grammar is a fixed set of case-insensitive `[KEYWORD: payload]` spans,
// payload non-greedy up to the closing bracket. WRITE carries two arguments
// separated by a pipe. SCAN is the one bare tag with no payload.
package tagparse

import (
	"regexp"
	"strings"
)

// Kind identifies one recognized tag keyword.
type Kind string

const (
	KindOpen      Kind = "open"
	KindType      Kind = "type"
	KindPress     Kind = "press"
	KindClick     Kind = "click"
	KindWait      Kind = "wait"
	KindScan      Kind = "scan"
	KindWallpaper Kind = "wallpaper"
	KindTask      Kind = "task"
	KindWeather   Kind = "weather"
	KindMusic     Kind = "music"
	KindLetter    Kind = "letter"
	KindLatex     Kind = "latex"
	KindNote      Kind = "note"
	KindRead      Kind = "read"
	KindWrite     Kind = "write"
	KindDraw      Kind = "draw"
	KindVideo     Kind = "video"
	KindVTSBg     Kind = "vts_bg"
)

// Invocation is one parsed command. Args is the ordered payload list:
// empty for SCAN, two entries for WRITE, one entry for everything else.
type Invocation struct {
	Kind Kind
	Args []string
}

type tagSpec struct {
	kind    Kind
	pattern *regexp.Regexp
	args    int
}

// extractOrder is the fixed processing priority: observing and side-effect
// tags first, then the capped art tags, then desktop-control tags. Within one
// keyword, matches keep textual order.
var extractOrder = []tagSpec{
	{KindScan, regexp.MustCompile(`(?i)\[SCAN\]`), 0},
	{KindLatex, regexp.MustCompile(`(?is)\[LATEX\s*:\s*(.*?)\]`), 1},
	{KindTask, regexp.MustCompile(`(?is)\[TASK\s*:\s*(.*?)\]`), 1},
	{KindNote, regexp.MustCompile(`(?i)\[NOTE\s*:\s*(.*?)\]`), 1},
	{KindRead, regexp.MustCompile(`(?i)\[READ\s*:\s*(.*?)\]`), 1},
	{KindWrite, regexp.MustCompile(`(?is)\[WRITE\s*:\s*(.*?)\s*\|\s*(.*?)\]`), 2},
	{KindDraw, regexp.MustCompile(`(?i)\[DRAW\s*:\s*(.*?)\]`), 1},
	{KindVideo, regexp.MustCompile(`(?i)\[VIDEO\s*:\s*(.*?)\]`), 1},
	{KindOpen, regexp.MustCompile(`(?i)\[OPEN\s*:\s*(.*?)\]`), 1},
	{KindType, regexp.MustCompile(`(?is)\[TYPE\s*:\s*(.*?)\]`), 1},
	{KindPress, regexp.MustCompile(`(?i)\[PRESS\s*:\s*(.*?)\]`), 1},
	{KindClick, regexp.MustCompile(`(?i)\[CLICK\s*:\s*(.*?)\]`), 1},
	{KindWait, regexp.MustCompile(`(?i)\[WAIT\s*:\s*(.*?)\]`), 1},
	{KindWallpaper, regexp.MustCompile(`(?i)\[WALLPAPER\s*:\s*(.*?)\]`), 1},
	{KindWeather, regexp.MustCompile(`(?i)\[WEATHER\s*:\s*(.*?)\]`), 1},
	{KindMusic, regexp.MustCompile(`(?i)\[MUSIC\s*:\s*(.*?)\]`), 1},
	{KindLetter, regexp.MustCompile(`(?is)\[LETTER\s*:\s*(.*?)\]`), 1},
	{KindVTSBg, regexp.MustCompile(`(?i)\[VTS_BG\s*:\s*(.*?)\]`), 1},
}

// singlePerResponse tags are capped at one extraction per response, first
// occurrence wins. Anti-spam rule for the art side channels.
var singlePerResponse = map[Kind]bool{
	KindDraw:  true,
	KindVideo: true,
}

// triggerTokens decide whether a response enters the tool-dispatch path at
// all. Matched as case-insensitive substrings, same as the prompt legend.
var triggerTokens = []string{
	"[OPEN:", "[SCAN]", "[TYPE:", "[CLICK:", "[TASK:",
	"[LATEX:", "[NOTE:", "[READ:", "[WRITE:", "[DRAW:", "[VIDEO:",
}

// DetectAny reports whether text contains any trigger tag. A false result
// short-circuits the dialogue loop to a plain answer.
func DetectAny(text string) bool {
	upper := strings.ToUpper(text)
	for _, token := range triggerTokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

// Extract parses every recognized tag into typed invocations, ordered by the
// fixed keyword priority list and textually within each keyword. DRAW and
// VIDEO yield at most one invocation each regardless of occurrence count.
func Extract(text string) []Invocation {
	var out []Invocation
	for _, spec := range extractOrder {
		matches := spec.pattern.FindAllStringSubmatch(text, -1)
		for _, m := range matches {
			args := make([]string, 0, spec.args)
			for i := 1; i <= spec.args; i++ {
				args = append(args, strings.TrimSpace(m[i]))
			}
			out = append(out, Invocation{Kind: spec.kind, Args: args})
			if singlePerResponse[spec.kind] {
				break
			}
		}
	}
	return out
}

// stripPattern is broader than the extraction grammar: it also catches
// malformed payloads (a WRITE missing its pipe) so no recognized keyword ever
// leaks a bracketed span into the user-visible text.
var stripPattern = regexp.MustCompile(`(?is)\[(?:OPEN|TYPE|PRESS|CLICK|WAIT|WALLPAPER|TASK|WEATHER|MUSIC|LETTER|LATEX|NOTE|READ|WRITE|DRAW|VIDEO|VTS_BG)\s*:\s*.*?\]|\[SCAN\]`)

// Strip removes every recognized tag span from text, whether or not a handler
// exists for it, and collapses the whitespace left behind. Idempotent.
func Strip(text string) string {
	text = stripPattern.ReplaceAllString(text, "")
	text = collapseWhitespace(text)
	return strings.TrimSpace(text)
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	trailingWS  = regexp.MustCompile(`[ \t]+\n`)
)

func collapseWhitespace(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = trailingWS.ReplaceAllString(text, "\n")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return text
}
