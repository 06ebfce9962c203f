package tools

import (
	"regexp"
	"strings"
)

// pathContextPatterns はメッセージからパスの手がかりを拾うパターン。
// 先頭から順に試し、最初に一致したものを採用する
var pathContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)in\s+(?:the\s+)?([a-zA-Z0-9_/-]+)\s+(?:folder|directory|dir)`),
	regexp.MustCompile(`(?i)from\s+(?:the\s+)?([a-zA-Z0-9_/-]+)\s+(?:folder|directory|dir)`),
	regexp.MustCompile(`(?i)in\s+([a-zA-Z0-9_/-]+)/`),
	regexp.MustCompile(`(?i)from\s+([a-zA-Z0-9_/-]+)/`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9_/-]+)/[a-zA-Z0-9_.-]+`),
	regexp.MustCompile(`(?i)inside\s+(?:the\s+)?([a-zA-Z0-9_/-]+)`),
	regexp.MustCompile(`(?i)under\s+(?:the\s+)?([a-zA-Z0-9_/-]+)`),
}

var pathStopwords = map[string]bool{
	"the":  true,
	"a":    true,
	"an":   true,
	"this": true,
	"that": true,
}

// filenamePatterns はメッセージからファイル名を拾うパターン。
// 動詞を伴う形を優先し、拡張子付きトークン単体は最後に試す
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:read|open|show|display|load)\s+(?:the\s+)?(?:contents\s+of\s+)?([a-zA-Z0-9_/-]+\.[a-zA-Z0-9]+)(?:\s+file)?`),
	regexp.MustCompile(`(?i)(?:read|open|show|display|load)\s+(?:the\s+)?(?:file\s+)?(\.[a-zA-Z0-9_-]+)(?:\s+file)?`),
	regexp.MustCompile(`(?i)(?:show|display)\s+(?:me\s+)?(?:the\s+)?([a-zA-Z0-9_/-]+\.[a-zA-Z0-9]+)(?:\s+file)?`),
	regexp.MustCompile(`(?i)(?:show|display)\s+(?:me\s+)?(?:the\s+)?(\.[a-zA-Z0-9_-]+)(?:\s+file)?`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9_/-]+\.[a-zA-Z0-9]+)\s+(?:file\s+)?(?:for\s+me|please)`),
	regexp.MustCompile(`(?i)(\.[a-zA-Z0-9_-]+)\s+(?:file\s+)?(?:for\s+me|please)`),
	regexp.MustCompile(`(?i)(?:file|path)\s+([a-zA-Z0-9_/.,-]+)`),
	regexp.MustCompile(`(?i)\b([a-zA-Z0-9_/-]+\.[a-zA-Z0-9]+)\b`),
	regexp.MustCompile(`(?i)\b(\.[a-zA-Z0-9_-]+)\b`),
}

var filenameStopwords = map[string]bool{
	"for":    true,
	"me":     true,
	"please": true,
	"can":    true,
	"you":    true,
	"the":    true,
	"file":   true,
}

// ExtractPathContext はメッセージからディレクトリの手がかりを抽出する。
// 見つからなければ空文字列を返す
func ExtractPathContext(message string) string {
	for _, re := range pathContextPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		hint := strings.TrimSpace(m[1])
		if hint != "" && !pathStopwords[strings.ToLower(hint)] {
			return hint
		}
	}
	return ""
}

// ExtractFilename はメッセージからファイル名を抽出する。
// 一般語に一致した場合は次のパターンへ進む
func ExtractFilename(message string) string {
	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		name := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if name != "" && !filenameStopwords[strings.ToLower(name)] {
			return name
		}
	}
	return ""
}
