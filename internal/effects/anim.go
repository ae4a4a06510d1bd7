package effects

// lerp performs linear interpolation between a and b
func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float32) float32 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// pow calculates x^n
func pow(x float32, n int) float32 {
	result := float32(1)
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}

// wrap maps v into [0, m).
func wrap(v, m float32) float32 {
	if m <= 0 {
		return 0
	}
	v -= float32(int(v/m)) * m
	if v < 0 {
		v += m
	}
	return v
}
