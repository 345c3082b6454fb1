// Package commands 定义封闭的命令集合。每个命令恰有一个处理器，处理结果返回给调用方。
package commands

import (
	"time"

	"allocation/domain"
)

// Command 命令接口；未导出方法使集合在包外不可扩展
type Command interface {
	domain.Message
	isCommand()
}

// Allocate 为订单行分配库存
type Allocate struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// Deallocate 撤销订单行的分配
type Deallocate struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// CreateBatch 新增批次，必要时创建产品
type CreateBatch struct {
	Ref string     `json:"ref"`
	SKU string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"`
}

// ChangeBatchQuantity 修改批次采购数量，可能触发重新分配
type ChangeBatchQuantity struct {
	Ref string `json:"batchref"`
	Qty int    `json:"qty"`
}

func (Allocate) MessageName() string            { return "Allocate" }
func (Deallocate) MessageName() string          { return "Deallocate" }
func (CreateBatch) MessageName() string         { return "CreateBatch" }
func (ChangeBatchQuantity) MessageName() string { return "ChangeBatchQuantity" }

func (Allocate) isCommand()            {}
func (Deallocate) isCommand()          {}
func (CreateBatch) isCommand()         {}
func (ChangeBatchQuantity) isCommand() {}
