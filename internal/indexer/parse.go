package indexer

import (
	"fmt"
	"strings"

	"poolScope/internal/scval"
)

// ParseContractIDs validates contract strkeys, dropping blanks and repeats.
func ParseContractIDs(inputs []string) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if _, err := scval.ParseContractID(input); err != nil {
			return nil, fmt.Errorf("invalid contract id: %s", input)
		}
		if _, ok := seen[input]; ok {
			continue
		}
		seen[input] = struct{}{}
		ids = append(ids, input)
	}
	return ids, nil
}
