package parser

import "github.com/address-resolver/app/models"

// combine merges rule-based and statistical fields. The higher confidence
// wins; ties go to the rule-based value. It reports which sides supplied at
// least one kept field.
func combine(rules, stat map[models.ComponentKind]models.Field) (out models.AddressComponents, fromRules, fromStat bool) {
	for _, kind := range models.ComponentKinds {
		r, hasR := rules[kind]
		s, hasS := stat[kind]
		switch {
		case hasR && (!hasS || r.Confidence >= s.Confidence):
			out.Set(kind, r)
			fromRules = true
		case hasS:
			out.Set(kind, s)
			fromStat = true
		}
	}
	return out, fromRules, fromStat
}

func methodFor(fromRules, fromStat bool) string {
	switch {
	case fromRules && fromStat:
		return models.ParseHybrid
	case fromStat:
		return models.ParseStatistical
	case fromRules:
		return models.ParseRuleBased
	default:
		return models.ParseFailed
	}
}
