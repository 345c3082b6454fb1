// Package events 定义封闭的领域事件集合。事件可有零到多个处理器，结果不回传。
package events

import "allocation/domain"

// Event 领域事件接口
type Event interface {
	domain.Message
	isEvent()
}

// OutOfStock 没有任何批次能满足订单行
type OutOfStock struct {
	SKU string `json:"sku"`
}

// Allocated 订单行已分配到批次
type Allocated struct {
	OrderID  string `json:"orderid"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

// Deallocated 订单行已从批次撤销
type Deallocated struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (OutOfStock) MessageName() string  { return "OutOfStock" }
func (Allocated) MessageName() string   { return "Allocated" }
func (Deallocated) MessageName() string { return "Deallocated" }

func (OutOfStock) isEvent()  {}
func (Allocated) isEvent()   {}
func (Deallocated) isEvent() {}
