package pipeline

// fallbackChain maps a source to the sources tried, in order, when it
// returns nothing. Keyed by the run's original source, not the most recent
// one, so a run never walks more than one chain.
var fallbackChain = map[string][]string{
	"ddg":           {"ddg_news", "news", "reddit"},
	"ddg_news":      {"news", "ddg", "reddit"},
	"news":          {"ddg_news", "ddg", "reddit"},
	"news_rapidapi": {"news", "ddg_news", "ddg"},
	"wikipedia":     {"ddg", "news"},
	"arxiv":         {"ddg", "news", "github"},
	"crypto":        {"cryptonews", "ddg_news", "news"},
	"cryptonews":    {"crypto", "ddg_news", "news"},
	"dex":           {"crypto", "cryptonews", "news"},
	"stocks":        {"ddg", "news"},
	"reddit":        {"ddg", "news"},
	"github":        {"ddg", "news"},
	"weather":       {"ddg"},
	"serper":        {"ddg", "news"},
	"tmz":           {"ddg_news", "news"},
}

// defaultFallbacks serves sources without an explicit chain.
var defaultFallbacks = []string{"news", "reddit", "ddg_news"}

// nextFallback returns the first source in originalSource's chain that has
// not been tried yet. ok is false when the chain is exhausted.
func nextFallback(originalSource string, tried []string) (string, bool) {
	chain, found := fallbackChain[originalSource]
	if !found {
		chain = defaultFallbacks
	}
	for _, candidate := range chain {
		if !contains(tried, candidate) {
			return candidate, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
