package signature

import "math/bits"

// Levenshtein 返回两个字符串按 rune 计算的编辑距离。
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// LevenshteinWithin 在长度差已超过上限时直接返回 false，避免 O(n²) 计算。
func LevenshteinWithin(a, b string, limit int) (int, bool) {
	la, lb := len([]rune(a)), len([]rune(b))
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > limit {
		return diff, false
	}
	d := Levenshtein(a, b)
	return d, d <= limit
}

// Hamming 返回两个 64 位签名不同的位数。
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
