package signature

import "strings"

// soundexCodes 为 A-Z 的 American Soundex 编码，'0' 表示不编码的字母。
var soundexCodes = [26]byte{
	'0', '1', '2', '3', '0', '1', '2', '0', '0', '2', '2', '4', '5',
	'5', '0', '1', '2', '6', '2', '3', '0', '1', '0', '2', '0', '2',
}

// Soundex 计算字符串的 American Soundex 编码（首字母 + 三位数字）。
// 只考虑 ASCII 字母，没有字母时返回空串。
func Soundex(s string) string {
	letters := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			letters = append(letters, c)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteByte(letters[0])
	prev := soundexCodes[letters[0]-'A']
	for _, c := range letters[1:] {
		if b.Len() == 4 {
			break
		}
		code := soundexCodes[c-'A']
		if code != '0' && code != prev {
			b.WriteByte(code)
		}
		// H 和 W 不会隔断相同编码的辅音
		if c != 'H' && c != 'W' {
			prev = code
		}
	}
	for b.Len() < 4 {
		b.WriteByte('0')
	}
	return b.String()
}
