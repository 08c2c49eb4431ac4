package trend

// Line is y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Fit computes the ordinary least-squares line through (xs[i], ys[i]).
// x is centered on its mean before accumulating so large ordinals
// (days since epoch) do not cost precision. With fewer than two points
// or no spread in x the line is flat at the mean of ys.
func Fit(xs, ys []float64) Line {
	n := float64(len(ys))
	if n == 0 || len(xs) != len(ys) {
		return Line{}
	}
	var xSum, ySum float64
	for i := range ys {
		xSum += xs[i]
		ySum += ys[i]
	}
	xMean := xSum / n
	yMean := ySum / n
	var num, den float64
	for i, yi := range ys {
		dx := xs[i] - xMean
		num += dx * (yi - yMean)
		den += dx * dx
	}
	if den == 0 {
		return Line{Intercept: yMean}
	}
	slope := num / den
	return Line{Slope: slope, Intercept: yMean - slope*xMean}
}

// RSquared is the coefficient of determination 1 - SS_res/SS_tot.
// It is negative when preds do worse than the mean of ys. A constant
// ys (SS_tot == 0) reports 1.0.
func RSquared(ys, preds []float64) float64 {
	n := float64(len(ys))
	if n == 0 {
		return 1
	}
	var ySum float64
	for _, v := range ys {
		ySum += v
	}
	yMean := ySum / n
	var ssRes, ssTot float64
	for i, yi := range ys {
		r := yi - preds[i]
		ssRes += r * r
		d := yi - yMean
		ssTot += d * d
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
