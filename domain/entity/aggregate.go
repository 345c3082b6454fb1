// Package entity 提供聚合根的基础能力：乐观锁版本号与待发消息缓冲
package entity

import "allocation/domain"

// IAggregate 聚合根接口
type IAggregate interface {
	// AggregateID 聚合标识
	AggregateID() string

	// GetVersion 乐观锁版本号
	GetVersion() int64

	// PullMessages 取出并清空待发消息
	PullMessages() []domain.Message
}

// Aggregate 基础聚合根。
//
// 待发消息缓冲属于单个实例，只能由工作单元通过 PullMessages 显式取走，
// 不同聚合实例、不同工作单元之间互不可见。
type Aggregate struct {
	version int64
	pending []domain.Message
}

// GetVersion 返回版本号
func (a *Aggregate) GetVersion() int64 {
	return a.version
}

// SetVersion 由仓储在加载时设置
func (a *Aggregate) SetVersion(v int64) {
	a.version = v
}

// IncrementVersion 版本号加一
func (a *Aggregate) IncrementVersion() {
	a.version++
}

// DecrementVersion 版本号减一
func (a *Aggregate) DecrementVersion() {
	a.version--
}

// Record 追加一条待发消息（事件或后续命令）
func (a *Aggregate) Record(msg domain.Message) {
	a.pending = append(a.pending, msg)
}

// PendingMessages 返回待发消息副本，不清空
func (a *Aggregate) PendingMessages() []domain.Message {
	out := make([]domain.Message, len(a.pending))
	copy(out, a.pending)
	return out
}

// PullMessages 按记录顺序取出并清空待发消息
func (a *Aggregate) PullMessages() []domain.Message {
	out := a.pending
	a.pending = nil
	return out
}
