// Package model 实现分配聚合：产品、批次与订单行
package model

import "strings"

// OrderLine 订单行值对象，三个字段全部相等即视为同一订单行
type OrderLine struct {
	OrderID string
	SKU     string
	Qty     int
}

// compareLines 按 (OrderID, SKU, Qty) 字典序比较
func compareLines(a, b OrderLine) int {
	if c := strings.Compare(a.OrderID, b.OrderID); c != 0 {
		return c
	}
	if c := strings.Compare(a.SKU, b.SKU); c != 0 {
		return c
	}
	return a.Qty - b.Qty
}
