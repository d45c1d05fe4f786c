package repository

import "aliaskit/client/internal/domain"

// Snapshot 某一时刻的别名列表状态
type Snapshot struct {
	Aliases    []domain.Alias `json:"aliases"`
	Cursor     int            `json:"cursor"`
	MoreToLoad bool           `json:"more_to_load"`
	Term       string         `json:"term"`
	Loading    bool           `json:"loading"`
}

// Snapshot 返回当前状态的副本
func (r *AliasRepository) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// Subscribe 订阅状态变化。
//
// 通道只保留最新一次快照，慢速消费者会跳过中间状态。订阅时立即收到当前快照。
// 调用返回的取消函数后通道被关闭。
func (r *AliasRepository) Subscribe() (<-chan Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextObsID
	r.nextObsID++
	ch := make(chan Snapshot, 1)
	ch <- r.snapshotLocked()
	r.observers[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.observers[id]; ok {
			delete(r.observers, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (r *AliasRepository) snapshotLocked() Snapshot {
	return Snapshot{
		Aliases:    cloneAll(r.aliases),
		Cursor:     r.cursor,
		MoreToLoad: r.moreToLoad,
		Term:       r.term,
		Loading:    r.inFlight,
	}
}

// publishLocked 向所有订阅者推送最新快照，调用方必须持有锁
func (r *AliasRepository) publishLocked() {
	if len(r.observers) == 0 {
		return
	}
	snapshot := r.snapshotLocked()
	for _, ch := range r.observers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
