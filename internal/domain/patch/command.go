package patch

// PatchCommand は応答から抽出した1ファイル分の変更提案を表す値オブジェクト
type PatchCommand struct {
	target   string // 書き込み先ファイルパス（プロジェクトルート相対）
	content  string // ファイル全体の内容
	language string // コードフェンスの言語タグ
}

// NewPatchCommand は新しいPatchCommandを作成
func NewPatchCommand(target, content, language string) PatchCommand {
	return PatchCommand{
		target:   target,
		content:  content,
		language: language,
	}
}

// Target は書き込み先ファイルパスを返す
func (c PatchCommand) Target() string {
	return c.target
}

// Content はファイル内容を返す
func (c PatchCommand) Content() string {
	return c.content
}

// Language は言語タグを返す
func (c PatchCommand) Language() string {
	return c.language
}

// IsValid はターゲットを持つ有効なコマンドかを判定
func (c PatchCommand) IsValid() bool {
	return c.target != ""
}
