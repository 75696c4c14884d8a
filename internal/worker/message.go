package worker

// Task はワーカーが実行する作業単位。引数も戻り値も持たない
type Task func()

// Entry はキューを流れるメッセージ。Work と Terminate の二種類だけが実装する
type Entry interface {
	entry()
}

// Work は実行すべきタスクを運ぶ
type Work struct {
	Task Task
}

// Terminate は受け取ったワーカーにループ終了を指示する
type Terminate struct{}

func (Work) entry()      {}
func (Terminate) entry() {}
