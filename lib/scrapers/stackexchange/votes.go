package stackexchange

import (
	"regexp"
	"strconv"
	"strings"
)

// matches "<label> × <count>" pairs, e.g. "Looks Good × 2"
var votesRegex = regexp.MustCompile(`(?i)([a-z]+(?:\s+[a-z]+)*)\s*×\s*(\d+)`)

// ParseVotes extracts every "<label> × <count>" tally out of a free-text
// review comment. Labels are lowercased; a comment with no tallies yields
// an empty map.
func ParseVotes(comment string) map[string]int {
	votes := map[string]int{}
	for _, match := range votesRegex.FindAllStringSubmatch(comment, -1) {
		label := strings.ToLower(strings.Join(strings.Fields(match[1]), " "))
		count, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		votes[label] += count
	}
	return votes
}
