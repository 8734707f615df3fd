// Package digest computes content fingerprints for notes
// Package digest 计算笔记内容指纹
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size hex length of a digest
// Size 摘要的十六进制长度
const Size = sha256.Size * 2

// Digest returns the SHA-256 of content as 64 lowercase hex characters
// Digest 返回内容的 SHA-256 十六进制字符串（64 位小写）
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether content still matches a previously anchored hash
// Verify 判断内容是否与已锚定的哈希一致
func Verify(content, storedHash string) bool {
	if len(storedHash) != Size {
		return false
	}
	return Digest(content) == storedHash
}
