package epidemic

import "math"

// logistic evaluates 1 / (1 + e^z) without overflowing for large |z|.
func logistic(z float64) float64 {
	if z > 0 {
		e := math.Exp(-z)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(z))
}

// TransmissionRate is the logistic contact rate k / (1 + e^(a + b*t)),
// bounded in [0, k] for k >= 0.
func TransmissionRate(a, b, k, t float64) float64 {
	return k * logistic(a+b*t)
}

// InterventionIntensity is the logistic lockdown curve 1 / (1 + e^(a + b*t)),
// bounded in (0, 1). With b > 0 it starts near 1 and decays toward 0.
func InterventionIntensity(a, b, t float64) float64 {
	return logistic(a + b*t)
}
