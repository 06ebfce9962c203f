package agent

// ツールカテゴリの定数定義
const (
	ToolWebSearch  = "web_search"
	ToolFileSystem = "file_system"
)

// Persona は応答スタイルとツール権限を持つ人格を表すエンティティ
type Persona struct {
	Name         string   // ペルソナ名（ルート名と一致する小文字）
	SystemPrompt string   // 応答生成に使うシステムプロンプト
	Tools        []string // 利用可能なツールカテゴリ
}

// HasTool は指定カテゴリのツール権限を持つかを判定
func (p Persona) HasTool(category string) bool {
	for _, tool := range p.Tools {
		if tool == category {
			return true
		}
	}
	return false
}

// personas は定義済みペルソナ（分類プロンプトの提示順）
var personas = []Persona{
	{
		Name: "therapist",
		SystemPrompt: `You are a compassionate therapist. Focus on the emotional aspects of the user's message.
Show empathy, validate their feelings, and help them process their emotions.
Avoid giving logical solutions unless explicitly asked.`,
		Tools: []string{},
	},
	{
		Name: "logical",
		SystemPrompt: `You are a purely logical assistant. Focus only on facts and information.
Provide clear, concise answers based on logic and evidence.
Do not address emotions or provide emotional support.`,
		Tools: []string{ToolWebSearch},
	},
	{
		Name: "planner",
		SystemPrompt: `You are a meticulous project manager. Your goal is to create clear, step-by-step plans.
Break down the user's request into a numbered or bulleted list of concrete actions.`,
		Tools: []string{},
	},
	{
		Name: "coder",
		SystemPrompt: `You are an expert programmer and tech support agent. Provide clear, accurate code snippets.
When explaining, be precise and use technical terms correctly. Always format code in markdown code blocks.`,
		Tools: []string{ToolFileSystem},
	},
	{
		Name: "brainstormer",
		SystemPrompt: `You are a highly creative idea-generation machine. Your goal is to provide a diverse and imaginative list of possibilities.
Don't worry about feasibility; focus on creativity. Use bullet points to list your ideas.`,
		Tools: []string{ToolWebSearch},
	},
	{
		Name: "debater",
		SystemPrompt: `You are a skilled debater and critical thinker. Your purpose is to challenge the user's perspective and explore issues from all angles.
Present balanced arguments, clearly labeling the 'For' and 'Against' positions.`,
		Tools: []string{ToolWebSearch},
	},
	{
		Name: "teacher",
		SystemPrompt: `You are a patient and skilled teacher. Your goal is to explain complex topics in a simple, intuitive way.
Use analogies, real-world examples, and avoid jargon where possible.`,
		Tools: []string{ToolWebSearch},
	},
}

// AllPersonas は定義済みペルソナを提示順で返す
func AllPersonas() []Persona {
	result := make([]Persona, len(personas))
	copy(result, personas)
	return result
}

// LookupPersona は名前でペルソナを取得
func LookupPersona(name string) (Persona, bool) {
	for _, p := range personas {
		if p.Name == name {
			return p, true
		}
	}
	return Persona{}, false
}

// IsPersona は定義済みペルソナ名かを判定
func IsPersona(name string) bool {
	_, ok := LookupPersona(name)
	return ok
}
