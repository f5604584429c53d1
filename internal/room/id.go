package room

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

// NormalizeID case-normalizes a caller-supplied room id.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// GenerateID creates a random, memorable room id using word combinations.
// Format: WORD-WORD-WORD (e.g., "KITTEN-WAFFLE-STARDUST").
// It picks 3 distinct word lists, then one word from each.
func GenerateID() string {
	allWords := [][]string{animals, dishes, adjectives, places, sky, extras}

	used := make(map[int]bool)
	words := make([]string, 0, 3)
	for len(words) < 3 {
		listIndex := randomIndex(len(allWords))
		if used[listIndex] {
			continue
		}
		used[listIndex] = true

		list := allWords[listIndex]
		words = append(words, list[randomIndex(len(list))])
	}

	return NormalizeID(strings.Join(words, "-"))
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		slog.Error("random index", "error", err)
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int(n.Int64())
}
