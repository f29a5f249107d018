package quiz

import (
	"math/rand"
	"strings"

	"github.com/example/chembot/pkg/models"
)

// ShuffleFunc has the signature of rand.Shuffle
type ShuffleFunc func(n int, swap func(i, j int))

// Prepare drops duplicate questions, caps the list at limit (0 means no cap)
// and fixes a random display order of the non-blank options of each question
func Prepare(questions []models.Question, limit int, shuffle ShuffleFunc) []PreparedQuestion {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	seen := make(map[int64]bool, len(questions))
	prepared := make([]PreparedQuestion, 0, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		if limit > 0 && len(prepared) == limit {
			break
		}
		seen[q.ID] = true

		order := make([]int, 0, len(q.Options))
		for i, opt := range q.Options {
			if strings.TrimSpace(opt) != "" {
				order = append(order, i)
			}
		}
		shuffleOrder(order, shuffle)
		prepared = append(prepared, PreparedQuestion{Question: q, Order: order})
	}
	return prepared
}

// reshuffleOrder returns a new random display order over the same options
func reshuffleOrder(order []int, shuffle ShuffleFunc) []int {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	out := append([]int(nil), order...)
	shuffleOrder(out, shuffle)
	return out
}

func shuffleOrder(order []int, shuffle ShuffleFunc) {
	shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}

// validOption reports whether option is a non-blank stored option index of q
func validOption(q models.Question, option int) bool {
	return option >= 0 && option < len(q.Options) && strings.TrimSpace(q.Options[option]) != ""
}
