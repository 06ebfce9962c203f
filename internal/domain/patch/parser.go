package patch

import (
	"regexp"
	"strings"
)

// 正規表現: ```言語:ファイルパス\n内容\n```
// 例: ```go:src/main.go\npackage main\n```
// (?s) フラグ: DOTALL モード（.が改行にもマッチ）
var reFileBlock = regexp.MustCompile(`(?s)` + "```" + `([a-zA-Z0-9]+):([^\n]+)\n(.*?)` + "```")

// ParsePatch は応答テキストからファイル変更提案を出現順に抽出
// 対象ブロックがなければ空のスライスを返す（提案なし）
func ParsePatch(response string) []PatchCommand {
	matches := reFileBlock.FindAllStringSubmatch(response, -1)

	commands := make([]PatchCommand, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[2])
		if target == "" {
			continue
		}
		commands = append(commands, NewPatchCommand(target, m[3], m[1]))
	}
	return commands
}

// HasPatch は応答テキストにファイル変更提案が含まれるかを判定
func HasPatch(response string) bool {
	return reFileBlock.MatchString(response)
}
