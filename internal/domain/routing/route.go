package routing

// Route は応答を生成するペルソナを表す型
type Route string

// ペルソナルートの定数定義
const (
	RouteTherapist    Route = "therapist"    // 感情・共感
	RouteLogical      Route = "logical"      // 事実・論理分析
	RoutePlanner      Route = "planner"      // 計画策定
	RouteCoder        Route = "coder"        // コード・ファイル操作
	RouteBrainstormer Route = "brainstormer" // アイデア出し
	RouteDebater      Route = "debater"      // 賛否の検討
	RouteTeacher      Route = "teacher"      // 平易な解説
)

// AllRoutes は定義済みルートを分類プロンプトの提示順で返す
func AllRoutes() []Route {
	return []Route{
		RouteTherapist,
		RouteLogical,
		RoutePlanner,
		RouteCoder,
		RouteBrainstormer,
		RouteDebater,
		RouteTeacher,
	}
}

// ParseRoute は文字列をRouteに変換する。未定義名はfalseを返す
func ParseRoute(name string) (Route, bool) {
	for _, r := range AllRoutes() {
		if string(r) == name {
			return r, true
		}
	}
	return "", false
}

// String はRouteの文字列表現を返す
func (r Route) String() string {
	return string(r)
}

// IsValid は定義済みルートかを判定
func (r Route) IsValid() bool {
	_, ok := ParseRoute(string(r))
	return ok
}

// IsCoderRoute はCoderルートかを判定
func (r Route) IsCoderRoute() bool {
	return r == RouteCoder
}

// Decision はルーティング決定の結果を表す
type Decision struct {
	Route      Route   // 決定されたルート
	Confidence float64 // 確信度（0.0 - 1.0）
	Reason     string  // 決定理由
}

// NewDecision は新しいDecisionを作成
func NewDecision(route Route, confidence float64, reason string) Decision {
	return Decision{
		Route:      route,
		Confidence: confidence,
		Reason:     reason,
	}
}
