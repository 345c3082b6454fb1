// Package domain 定义命令与事件共同的消息根接口
package domain

// Message 总线上流转的消息（命令或事件）
type Message interface {
	// MessageName 消息类型名，用于日志、路由与外部通道映射
	MessageName() string
}
