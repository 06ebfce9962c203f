package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// verifySignature はX-Line-Signatureヘッダを検証する。
// 署名はチャネルシークレットを鍵としたボディのHMAC-SHA256をbase64符号化したもの
func verifySignature(body []byte, signature, channelSecret string) bool {
	sent, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sent) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), sent)
}
