package worker

import (
	"errors"
	"sync"
)

// ErrQueueClosed は受信側が破棄された後の送受信で返る
var ErrQueueClosed = errors.New("task queue closed")

type node struct {
	entry Entry
	next  *node
}

// Queue は上限のない FIFO キュー
// 受信側は全ワーカーで共有され、1回の取り出しの間だけロックを保持する
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	head   *node
	tail   *node
	length int
	closed bool
}

// NewQueue は空のキューを作成する
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send はエントリを末尾に追加する。ブロックしない
// 受信側が閉じられている場合のみ ErrQueueClosed を返す
func (q *Queue) Send(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	n := &node{entry: e}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.length++

	q.cond.Signal()
	return nil
}

// Receive は先頭のエントリを取り出す。空なら届くまでブロックする
// キューが閉じられると ErrQueueClosed を返す
func (q *Queue) Receive() (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.length == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, ErrQueueClosed
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.length--
	return n.entry, nil
}

// Close は受信側を破棄し、残っていたエントリを送信順で返す
// 待機中の Receive は全て ErrQueueClosed で戻る。二回目以降は nil を返す
func (q *Queue) Close() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	discarded := make([]Entry, 0, q.length)
	for n := q.head; n != nil; n = n.next {
		discarded = append(discarded, n.entry)
	}
	q.closed = true
	q.head, q.tail, q.length = nil, nil, 0

	q.cond.Broadcast()
	return discarded
}

// Len は未処理のエントリ数を返す
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// Closed はキューが閉じられているかを返す
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
