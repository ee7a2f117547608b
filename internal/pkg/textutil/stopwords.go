package textutil

// English stop words, close to the NLTK set.
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"against": true, "all": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "aren": true, "as": true, "at": true,
	"be": true, "because": true, "been": true, "before": true, "being": true,
	"below": true, "between": true, "both": true, "but": true, "by": true,
	"can": true, "couldn": true, "d": true, "did": true, "didn": true,
	"do": true, "does": true, "doesn": true, "doing": true, "don": true,
	"down": true, "during": true, "each": true, "few": true, "for": true,
	"from": true, "further": true, "had": true, "hadn": true, "has": true,
	"hasn": true, "have": true, "haven": true, "having": true, "he": true,
	"her": true, "here": true, "hers": true, "herself": true, "him": true,
	"himself": true, "his": true, "how": true, "i": true, "if": true,
	"in": true, "into": true, "is": true, "isn": true, "it": true,
	"its": true, "itself": true, "just": true, "ll": true, "m": true,
	"ma": true, "me": true, "more": true, "most": true, "my": true,
	"myself": true, "no": true, "nor": true, "not": true, "now": true,
	"o": true, "of": true, "off": true, "on": true, "once": true,
	"only": true, "or": true, "other": true, "our": true, "ours": true,
	"ourselves": true, "out": true, "over": true, "own": true, "re": true,
	"s": true, "same": true, "she": true, "should": true, "shouldn": true,
	"so": true, "some": true, "such": true, "t": true, "than": true,
	"that": true, "the": true, "their": true, "theirs": true, "them": true,
	"themselves": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "to": true,
	"too": true, "under": true, "until": true, "up": true, "ve": true,
	"very": true, "was": true, "wasn": true, "we": true, "were": true,
	"weren": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "whom": true, "why": true, "will": true,
	"with": true, "won": true, "wouldn": true, "y": true, "you": true,
	"your": true, "yours": true, "yourself": true, "yourselves": true,
}

// IsStopWord reports whether token is in the stop-word set. Token must be
// lowercase.
func IsStopWord(token string) bool {
	return stopWords[token]
}
