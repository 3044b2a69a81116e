package signature

import (
	"hash/fnv"
	"strings"
)

// ShingleSize 是构造 simhash 时每个词组 shingle 包含的词数。
const ShingleSize = 3

// Shingles 将规范化后的文本切分为相邻 ShingleSize 个词组成的 shingle。
// 词数不足时整段文本作为唯一的 shingle。
func Shingles(normalized string) []string {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil
	}
	if len(words) < ShingleSize {
		return []string{strings.Join(words, " ")}
	}
	out := make([]string, 0, len(words)-ShingleSize+1)
	for i := 0; i+ShingleSize <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+ShingleSize], " "))
	}
	return out
}

func hashShingle(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// permutationSeed 为签名的第 bit 位派生一个独立的哈希排列。
func permutationSeed(bit int) uint64 {
	return uint64(bit+1) * 0x9e3779b97f4a7c15
}

// mix64 是 splitmix64 的终结函数，把 shingle 哈希映射到某个排列下的位置。
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Simhash64 计算内容的 64 位局部敏感签名（1-bit MinHash）：
// 每一位对应一个独立排列，取全部 shingle 在该排列下的最小值，用其最低位作为该位。
// 两份文档在某一位上相同的概率为 (1+J)/2，J 是 shingle 集合的 Jaccard 相似度；
// 多出一个 shingle 只会改变新 shingle 恰好成为最小值的那些位。
// 内容为空时返回 0，即"未计算"。
func Simhash64(content string) uint64 {
	shingles := Shingles(NormalizeContent(content))
	if len(shingles) == 0 {
		return 0
	}

	hashes := make([]uint64, len(shingles))
	for i, sh := range shingles {
		hashes[i] = hashShingle(sh)
	}

	var result uint64
	for bit := 0; bit < 64; bit++ {
		seed := permutationSeed(bit)
		minimum := ^uint64(0)
		for _, h := range hashes {
			if v := mix64(h ^ seed); v < minimum {
				minimum = v
			}
		}
		if minimum&1 == 1 {
			result |= uint64(1) << bit
		}
	}
	return result
}
