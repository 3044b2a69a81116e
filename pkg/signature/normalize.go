// Package signature 计算文档指纹所需的各类签名：哈希、规范化文本、Soundex、simhash 以及距离函数。
package signature

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CollapseWhitespace 将所有空白字符序列替换为单个空格，并去掉首尾空白。
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeContent 折叠空白并转为小写，使段落重排不影响精确匹配。
func NormalizeContent(content string) string {
	return strings.ToLower(CollapseWhitespace(content))
}

// NormalizeTitle 先做 NFKC 兼容分解，再小写并折叠空白。
func NormalizeTitle(title string) string {
	return strings.ToLower(CollapseWhitespace(norm.NFKC.String(title)))
}

// MD5Hex 返回 md5 的十六进制摘要。
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256Hex 返回 sha256 的十六进制摘要。
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// WordCount 返回按空白切分后的词数。
func WordCount(content string) int {
	return len(strings.Fields(content))
}
