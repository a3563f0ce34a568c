//go:build !race

package auth

func passwordHashCost() int {
	// Cost 14 keeps a single hash in the hundreds of milliseconds on current
	// hardware, which is the brute-force margin we want for health data.
	return 14
}
