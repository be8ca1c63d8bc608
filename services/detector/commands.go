package detector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

// Command is one parsed chat instruction addressed at the bot.
type Command struct {
	Name string
	// report window in days, report threshold in reviews; only set for
	// the "report" command, defaults filled by the caller's config
	Days      int
	Threshold int
}

var knownCommands = []string{"alive", "instance", "report"}

var (
	daysParamRegex      = regexp.MustCompile(`^(\d+)d$`)
	thresholdParamRegex = regexp.MustCompile(`^(\d+)$`)
)

// ParseCommand interprets a chat mention such as "@bot report 30d 5".
// Mention tokens are dropped, the first remaining word names the command,
// and report parameters are recognized by shape (a "<n>d" token is the
// window, a bare number the threshold) in any order. An unknown command
// errors with the closest known name when one is plausibly meant.
func ParseCommand(message string) (Command, error) {
	var words []string
	for _, word := range strings.Fields(message) {
		if strings.HasPrefix(word, "@") {
			continue
		}
		words = append(words, word)
	}
	if len(words) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	cmd := Command{Name: strings.ToLower(words[0])}
	if !isKnownCommand(cmd.Name) {
		if suggestion := closestCommand(cmd.Name); suggestion != "" {
			return Command{}, fmt.Errorf("unknown command %q, did you mean %q?", cmd.Name, suggestion)
		}
		return Command{}, fmt.Errorf("unknown command %q", cmd.Name)
	}

	if cmd.Name == "report" {
		for _, param := range words[1:] {
			if match := daysParamRegex.FindStringSubmatch(param); match != nil {
				if days, err := strconv.Atoi(match[1]); err == nil && days > 0 {
					cmd.Days = days
				}
				continue
			}
			if match := thresholdParamRegex.FindStringSubmatch(param); match != nil {
				if threshold, err := strconv.Atoi(match[1]); err == nil && threshold > 0 {
					cmd.Threshold = threshold
				}
			}
		}
	}

	return cmd, nil
}

func isKnownCommand(name string) bool {
	for _, known := range knownCommands {
		if known == name {
			return true
		}
	}
	return false
}

func closestCommand(name string) string {
	var best string
	var bestSimilarity float64
	for _, known := range knownCommands {
		similarity := matchr.JaroWinkler(name, known, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = known
		}
	}
	// below this the suggestion reads as a non sequitur
	if bestSimilarity < 0.7 {
		return ""
	}
	return best
}
