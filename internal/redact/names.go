package redact

import "strings"

// nonNames holds lower-cased capitalised words that are never personal
// names in the context of a club speech evaluation.
var nonNames = buildSet(
	// Organisations and club vocabulary.
	"toastmasters", "toastmaster", "district", "club", "area", "division",
	"pathways", "competent", "communicator", "leader", "leadership",
	"ice", "breaker", "icebreaker", "table", "topics", "topicsmaster",
	"general", "evaluator", "timer", "grammarian", "president", "vice",
	"secretary", "treasurer", "sergeant", "arms", "mentor", "contest",
	"international", "university", "college", "school", "company",
	"google", "microsoft", "apple", "amazon", "facebook", "youtube",
	"ted", "zoom", "linkedin", "netflix", "nasa", "un", "olympics",

	// Days and months.
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",

	// Seasons and holidays.
	"spring", "summer", "autumn", "fall", "winter",
	"christmas", "easter", "thanksgiving", "halloween", "ramadan", "diwali",
	"hanukkah", "new", "year", "eve",

	// Places.
	"america", "american", "africa", "african", "asia", "asian", "europe",
	"european", "australia", "australian", "antarctica", "canada", "canadian",
	"mexico", "mexican", "brazil", "brazilian", "argentina", "chile",
	"england", "english", "britain", "british", "scotland", "scottish",
	"ireland", "irish", "wales", "welsh", "france", "french", "germany",
	"german", "italy", "italian", "spain", "spanish", "portugal",
	"portuguese", "netherlands", "dutch", "belgium", "switzerland", "swiss",
	"austria", "sweden", "swedish", "norway", "norwegian", "denmark",
	"danish", "finland", "finnish", "poland", "polish", "russia", "russian",
	"ukraine", "ukrainian", "greece", "greek", "turkey", "turkish",
	"egypt", "egyptian", "nigeria", "nigerian", "kenya", "kenyan",
	"india", "indian", "china", "chinese", "japan", "japanese", "korea",
	"korean", "vietnam", "vietnamese", "thailand", "thai", "philippines",
	"filipino", "indonesia", "indonesian", "malaysia", "singapore",
	"pakistan", "israel", "iran", "iraq", "arabia", "arabic", "dubai",
	"zealand", "united", "states", "kingdom", "republic", "north", "south",
	"east", "west", "northern", "southern", "eastern", "western", "middle",
	"london", "paris", "berlin", "madrid", "rome", "tokyo", "beijing",
	"delhi", "mumbai", "sydney", "melbourne", "toronto", "vancouver",
	"chicago", "boston", "seattle", "houston", "dallas", "atlanta",
	"denver", "miami", "york", "angeles", "san", "francisco", "diego",
	"washington", "texas", "california", "florida", "city", "street",
	"avenue", "road", "park", "river", "lake", "mount", "mountain", "ocean",
	"pacific", "atlantic", "earth", "moon", "mars",

	// Languages and religions.
	"latin", "hindi", "mandarin", "cantonese", "christian", "muslim",
	"jewish", "buddhist", "hindu", "catholic", "god", "bible",

	// Discourse connectives and common sentence starters that may follow
	// a quote or a comma.
	"i", "a", "an", "the", "and", "but", "or", "so", "yet", "for", "nor",
	"also", "then", "now", "first", "firstly", "second", "secondly",
	"third", "thirdly", "finally", "lastly", "next", "however",
	"therefore", "moreover", "furthermore", "meanwhile", "overall",
	"additionally", "instead", "otherwise", "still", "thus", "hence",
	"indeed", "consequently", "similarly", "likewise", "in", "on", "at",
	"to", "of", "by", "with", "from", "as", "if", "when", "while",
	"because", "since", "although", "though", "after", "before", "today",
	"tonight", "yesterday", "tomorrow", "this", "that", "these", "those",
	"there", "here", "it", "its", "we", "you", "your", "our", "my", "me",
	"he", "she", "they", "them", "his", "her", "their", "what", "why",
	"how", "who", "where", "which", "yes", "no", "not", "well", "okay",
	"ok", "oh", "wow", "hello", "hi", "thanks", "thank", "please",
	"good", "great", "imagine", "remember", "let", "lets", "conclusion",
	"ladies", "gentlemen", "madam", "mister", "fellow", "friends",
	"everyone", "everybody", "one", "two", "three", "all", "every",
	"each", "some", "many", "most", "just", "even", "only", "again",
	"sometimes", "always", "never", "perhaps", "maybe", "of", "course",
	"speech", "speaker", "audience", "opening", "body", "closing",
	"overall", "project", "objective", "objectives", "level", "path",
)

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
