package scoring

import "github.com/shopspring/decimal"

var (
	baseCorrect   = decimal.NewFromInt(75)
	baseIncorrect = decimal.NewFromInt(25)

	hundred = decimal.NewFromInt(100)

	bonusHuge   = decimal.NewFromInt(25) // abs move >= 10%
	bonusLarge  = decimal.NewFromInt(15) // abs move >= 5%
	bonusMedium = decimal.NewFromInt(10) // abs move >= 2%
	bonusSmall  = decimal.NewFromInt(5)  // abs move < 2%

	thresholdHuge   = decimal.NewFromInt(10)
	thresholdLarge  = decimal.NewFromInt(5)
	thresholdMedium = decimal.NewFromInt(2)
)

// AccuracyScore maps a directional call and the percent price move to a
// score in [0, 100]. Correct calls start at 75 and earn a magnitude bonus;
// incorrect calls start at 25 and the bonus is negated, so a badly wrong
// call on a big move scores lower than a wrong call on a flat-ish move.
func AccuracyScore(correct bool, percentChange decimal.Decimal) decimal.Decimal {
	abs := percentChange.Abs()

	var bonus decimal.Decimal
	switch {
	case abs.GreaterThanOrEqual(thresholdHuge):
		bonus = bonusHuge
	case abs.GreaterThanOrEqual(thresholdLarge):
		bonus = bonusLarge
	case abs.GreaterThanOrEqual(thresholdMedium):
		bonus = bonusMedium
	default:
		bonus = bonusSmall
	}

	base := baseCorrect
	if !correct {
		base = baseIncorrect
		bonus = bonus.Neg()
	}

	score := base.Add(bonus)
	if score.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if score.GreaterThan(hundred) {
		return hundred
	}
	return score
}

var (
	accuracyExcellent = decimal.NewFromInt(90)
	accuracyGood      = decimal.NewFromInt(70)
	accuracyFair      = decimal.NewFromInt(50)
	accuracyPoor      = decimal.NewFromInt(30)
)

// ReputationDelta maps an accuracy score to the signed reputation
// adjustment for the prediction's owner. Buckets cover [0, 100] with no
// overlap; reputation itself has no floor, so repeated bad calls go
// negative.
func ReputationDelta(accuracy decimal.Decimal) int {
	switch {
	case accuracy.GreaterThanOrEqual(accuracyExcellent):
		return 10
	case accuracy.GreaterThanOrEqual(accuracyGood):
		return 5
	case accuracy.GreaterThanOrEqual(accuracyFair):
		return 2
	case accuracy.GreaterThanOrEqual(accuracyPoor):
		return 0
	default:
		return -2
	}
}
