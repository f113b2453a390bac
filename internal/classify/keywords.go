package classify

// Taxonomy labels. Items that fit none of these are dropped before storage.
const (
	CategorySports    = "sports"
	CategoryMusic     = "music"
	CategoryFinance   = "finance"
	CategoryLifestyle = "lifestyle"
)

// defaultKeywords maps each category to weighted indicator terms. Weights
// express how definitive a term is for the category (3.0 near-certain, 1.0
// weak). Terms may be unigrams or bigrams.
func defaultKeywords() map[string]map[string]float64 {
	return map[string]map[string]float64{
		CategorySports: {
			"cricket": 3.0, "afl": 3.0, "nrl": 3.0, "rugby": 3.0,
			"football": 2.5, "soccer": 2.5, "tennis": 2.5, "basketball": 2.5,
			"netball": 2.5, "swimming": 2.5, "athletics": 2.5, "formula one": 3.0,
			"f1": 3.0, "olympics": 3.0, "championship": 2.0, "tournament": 2.0,
			"match": 1.5, "game": 1.5, "team": 1.5, "player": 1.5, "coach": 1.5,
			"goal": 1.5, "score": 1.5, "win": 1.0, "loss": 1.0, "victory": 1.5,
			"defeat": 1.5, "stadium": 2.0, "league": 2.0, "season": 1.5,
			"wicket": 2.5, "innings": 2.5, "bowler": 2.5, "batsman": 2.5,
			"try": 1.0, "penalty": 1.0, "referee": 1.5, "umpire": 2.0,
		},
		CategoryMusic: {
			"concert": 3.0, "album": 3.0, "tour": 2.5, "festival": 2.5,
			"grammy": 3.0, "aria": 3.0, "spotify": 2.5, "billboard": 2.5,
			"singer": 2.0, "band": 2.0, "musician": 2.0, "artist": 1.5,
			"song": 2.0, "music": 1.5, "recording": 2.0, "performance": 1.5,
			"single": 2.0, "release": 1.5, "debut": 2.0, "soundtrack": 2.5,
			"rock": 1.5, "pop": 1.5, "hip hop": 2.0, "rap": 2.0,
			"jazz": 2.0, "classical": 2.0, "country": 1.5,
		},
		CategoryFinance: {
			"asx": 3.0, "stock market": 3.0, "shares": 2.5, "dividend": 3.0,
			"rba": 3.0, "interest rate": 3.0, "inflation": 2.5, "gdp": 3.0,
			"reserve bank": 3.0, "central bank": 3.0, "federal reserve": 3.0,
			"investment": 2.0, "investor": 2.0, "trading": 2.0, "market": 1.5,
			"stock": 2.0, "share": 2.0, "equity": 2.5, "bond": 2.5,
			"currency": 2.0, "dollar": 1.5, "economy": 1.5, "economic": 1.5,
			"financial": 2.0, "banking": 2.0, "bank": 1.5, "profit": 1.5,
			"revenue": 2.0, "earnings": 2.0, "quarter": 1.0, "fiscal": 2.5,
			"bitcoin": 2.5, "cryptocurrency": 2.5, "crypto": 2.0, "blockchain": 2.5,
		},
		CategoryLifestyle: {
			"fashion": 3.0, "beauty": 2.5, "wellness": 2.5, "fitness": 2.5,
			"recipe": 3.0, "travel": 2.5, "destination": 2.5, "vacation": 2.5,
			"health": 2.0, "diet": 2.5, "nutrition": 2.5, "exercise": 2.5,
			"style": 1.5, "designer": 2.0, "makeup": 2.5, "skincare": 2.5,
			"restaurant": 2.0, "food": 1.5, "dining": 2.0, "chef": 2.0,
			"hotel": 2.0, "resort": 2.5, "holiday": 2.0, "tourism": 2.0,
			"home": 1.0, "decor": 2.5, "interior": 2.0, "garden": 2.0,
			"relationship": 2.0, "parenting": 2.5, "family": 1.0,
		},
	}
}
