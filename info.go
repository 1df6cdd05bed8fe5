package bincode

import (
	"strings"
)

type fieldInfo struct {
	// Ignore this field
	ignore bool
}

func parseFieldInfo(tag string) fieldInfo {
	var info fieldInfo

	if tag == "" {
		return info
	}

	if tag == "-" {
		info.ignore = true
		return info
	}

	for _, part := range strings.Split(tag, ";") {
		switch strings.TrimSpace(part) {
		case "ignore", "skip":
			info.ignore = true
		}
	}

	return info
}
