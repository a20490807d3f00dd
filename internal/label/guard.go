package label

// VocabularyVersion changes whenever a title in the mapping table changes. Labels
// written under an older version are only recognized if their titles are passed to
// NewGuard.
const VocabularyVersion = 1

// Vocabulary returns the titles this system can produce for known categories.
func Vocabulary() []string {
	titles := make([]string, 0, len(table))
	for _, r := range table {
		titles = append(titles, r.title)
	}
	return titles
}

// AlreadyTriaged reports whether existing and vocabulary share a title.
func AlreadyTriaged(existing, vocabulary []string) bool {
	if len(existing) == 0 || len(vocabulary) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(vocabulary))
	for _, t := range vocabulary {
		set[t] = struct{}{}
	}
	for _, t := range existing {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Guard checks entries against the vocabulary plus any historical titles.
type Guard struct {
	vocabulary []string
}

func NewGuard(extraTitles ...string) *Guard {
	vocab := Vocabulary()
	for _, t := range extraTitles {
		if t != "" {
			vocab = append(vocab, t)
		}
	}
	return &Guard{vocabulary: vocab}
}

func (g *Guard) AlreadyTriaged(existing []string) bool {
	return AlreadyTriaged(existing, g.vocabulary)
}

// Titles returns the full vocabulary the guard matches against.
func (g *Guard) Titles() []string {
	out := make([]string, len(g.vocabulary))
	copy(out, g.vocabulary)
	return out
}
