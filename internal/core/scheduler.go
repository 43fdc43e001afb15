package core

import (
	"fmt"
	"strings"
)

// SpecMarker separates provisioning chatter from the spec list printed by
// the discovery command
var SpecMarker = strings.Repeat("*", 30)

// Chunk splits seq into exactly n contiguous groups of ceil(len/n)
// elements. The last groups may be shorter or empty; concatenating the
// groups in order gives back seq. n below 1 is treated as 1
func Chunk[T any](seq []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	size := (len(seq) + n - 1) / n
	groups := make([][]T, n)
	for i := range groups {
		start := min(i*size, len(seq))
		end := min(start+size, len(seq))
		groups[i] = seq[start:end:end]
	}
	return groups
}

// ParseSpecs extracts the spec list from discovery output: the whitespace
// separated words after the last SpecMarker. Output without a marker is
// taken whole
func ParseSpecs(out string) []string {
	if i := strings.LastIndex(out, SpecMarker); i >= 0 {
		out = out[i+len(SpecMarker):]
	}
	return strings.Fields(out)
}

// ShardTargets distributes specs over n end-to-end shards. Empty groups
// produce no target
func ShardTargets(specs []string, n int) []Target {
	var targets []Target
	for i, group := range Chunk(specs, n) {
		if len(group) == 0 {
			continue
		}
		targets = append(targets, Target{
			Name:   fmt.Sprintf("%s--part%d", E2ETarget, i+1),
			Parent: E2ETarget,
			Env:    "specs=" + strings.Join(group, ","),
		})
	}
	return targets
}
