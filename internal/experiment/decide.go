package experiment

// Decide maps a visitor token to a variant of rule.
//
// It is a pure function: the same (token, rule) pair always yields the same
// answer, and tokens keep their variant across threshold changes unless the
// threshold moves past them.
func Decide(token VisitorToken, rule SegmentationRule) (Variant, string) {
	if int(token) < rule.SplitThreshold {
		return VariantB, rule.VariantB
	}
	return VariantA, rule.VariantA
}
