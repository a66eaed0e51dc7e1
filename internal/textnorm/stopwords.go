package textnorm

// englishStopWords is the common English stop list applied by the vectorizer.
var englishStopWords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "almost", "also", "although",
	"always", "am", "among", "an", "and", "another", "any", "are", "around", "as", "at",
	"be", "became", "because", "become", "been", "before", "being", "below", "between",
	"both", "but", "by", "can", "cannot", "could", "did", "do", "does", "done", "down",
	"due", "during", "each", "either", "else", "enough", "etc", "even", "ever", "every",
	"few", "for", "from", "further", "had", "has", "have", "he", "her", "here", "hers",
	"herself", "him", "himself", "his", "how", "however", "i", "ie", "if", "in", "into",
	"is", "it", "its", "itself", "just", "last", "least", "less", "made", "many", "may",
	"me", "might", "more", "most", "mostly", "much", "must", "my", "myself", "neither",
	"never", "nevertheless", "next", "no", "nor", "not", "now", "of", "off", "often", "on",
	"once", "one", "only", "onto", "or", "other", "others", "otherwise", "our", "ours",
	"ourselves", "out", "over", "own", "per", "perhaps", "please", "rather", "re", "same",
	"see", "seem", "seemed", "several", "she", "should", "since", "so", "some", "still",
	"such", "than", "that", "the", "their", "them", "themselves", "then", "there",
	"therefore", "these", "they", "this", "those", "though", "through", "thus", "to",
	"together", "too", "toward", "under", "until", "up", "upon", "us", "very", "via",
	"was", "we", "well", "were", "what", "whatever", "when", "where", "whether", "which",
	"while", "who", "whole", "whom", "whose", "why", "will", "with", "within", "without",
	"would", "yet", "you", "your", "yours", "yourself", "yourselves",
})

// IsStopWord reports whether tok is on the English stop list. Korean function
// words never reach the vectorizer because Normalize already drops them.
func IsStopWord(tok string) bool {
	return englishStopWords[tok]
}
