package oracle

import (
	"strings"
)

// parsePlainText extracts impact, root cause, and numbered actions from a
// response in the format:
//
//	IMPACT:
//	<sentence>
//	ROOT CAUSE:
//	<sentence>
//	ACTIONS:
//	1. <action>
//	2. <action>
func parsePlainText(text string) (impact, rootCause string, actions []string) {
	const (
		sectionNone = iota
		sectionImpact
		sectionRootCause
		sectionActions
	)

	section := sectionNone

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "IMPACT:"):
			section = sectionImpact
			if rest := strings.TrimSpace(line[len("IMPACT:"):]); rest != "" {
				impact = rest
			}
			continue
		case strings.HasPrefix(upper, "ROOT CAUSE:"):
			section = sectionRootCause
			if rest := strings.TrimSpace(line[len("ROOT CAUSE:"):]); rest != "" {
				rootCause = rest
			}
			continue
		case strings.HasPrefix(upper, "ACTIONS:"):
			section = sectionActions
			continue
		}

		switch section {
		case sectionImpact:
			if impact == "" {
				impact = line
			}
		case sectionRootCause:
			if rootCause == "" {
				rootCause = line
			}
		case sectionActions:
			if action := stripListMarker(line); action != "" {
				actions = append(actions, action)
			}
		}
	}

	return impact, rootCause, actions
}

// stripListMarker removes "1. ", "2. ", "- " style prefixes
func stripListMarker(line string) string {
	trimmed := strings.TrimLeft(line, "0123456789")
	if len(trimmed) < len(line) {
		trimmed = strings.TrimPrefix(trimmed, ".")
	} else if strings.HasPrefix(trimmed, "-") {
		trimmed = trimmed[1:]
	} else {
		return ""
	}

	return strings.TrimSpace(trimmed)
}
