package guard

// Vocabulary is the term list for each policy.
type Vocabulary struct {
	Crisis           []string
	Toxicity         []string
	ContactFragments []string
}

// DefaultVocabulary returns the built-in term lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Crisis: []string{
			"suicide",
			"suicidal",
			"kill myself",
			"end my life",
			"want to die",
			"wanna die",
			"self-harm",
			"self harm",
			"cut myself",
			"hurt myself",
			"overdose",
			"no reason to live",
			"better off dead",
		},
		Toxicity: []string{
			"idiot",
			"stupid",
			"loser",
			"shut up",
			"moron",
			"pathetic",
			"kill yourself",
			"go die",
		},
		ContactFragments: []string{
			"open.kakao.com",
			"kakaotalk",
			"t.me/",
			"telegram.me",
			"wa.me/",
			"whatsapp",
			"discord.gg",
			"line.me",
			"instagram.com/",
			"snapchat",
		},
	}
}
