package domain

import "strings"

// legacy aliases carried over from older payloads. Normalization happens
// once, at the ingestion boundary; everything past it works with TargetType.
var targetAliases = map[string]TargetType{
	"sl":        TargetStopLoss,
	"stoploss":  TargetStopLoss,
	"sb":        TargetSafebook,
	"safe_book": TargetSafebook,
	"t1":        TargetOne,
	"t2":        TargetTwo,
	"t3":        TargetThree,
}

// NormalizeTargetKey resolves a raw target key (canonical name or legacy
// alias) to its TargetType. Returns false for anything unknown.
func NormalizeTargetKey(key string) (TargetType, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if t := TargetType(k); t.IsValid() {
		return t, true
	}
	if t, ok := targetAliases[k]; ok {
		return t, true
	}
	return "", false
}
