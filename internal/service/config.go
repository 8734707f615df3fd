// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import "time"

// DefaultSelfPaymentLovelace minimal value-bearing output carried by an anchor transaction (1 ADA)
// DefaultSelfPaymentLovelace 锚定交易携带的最小自付款输出（1 ADA）
const DefaultSelfPaymentLovelace uint64 = 1_000_000

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	Anchor       AnchorServiceConfig       // Anchor orchestration // 锚定流程配置
	Verification VerificationServiceConfig // Verification worker // 交易校验配置
}

// AnchorServiceConfig anchor orchestration configuration
// AnchorServiceConfig 锚定流程配置
type AnchorServiceConfig struct {
	SelfPaymentLovelace       uint64 // Self-payment output amount // 自付款金额（lovelace）
	RequireDeleteConfirmation bool   // Wait for the delete anchor to be visible on chain before deleting // 删除前是否等待锚定交易上链
}

// VerificationServiceConfig verification configuration
// VerificationServiceConfig 交易校验配置
type VerificationServiceConfig struct {
	MaxRetries      int           // Max verification attempts // 最大校验次数
	BatchSize       int           // Records per worker run // 每批处理数量
	ConfirmTimeout  time.Duration // WaitConfirmed deadline // 等待上链超时时间
	ConfirmInterval time.Duration // First poll interval of WaitConfirmed // 等待上链的首次轮询间隔
}

func (c AnchorServiceConfig) withDefaults() AnchorServiceConfig {
	if c.SelfPaymentLovelace == 0 {
		c.SelfPaymentLovelace = DefaultSelfPaymentLovelace
	}
	return c
}

func (c VerificationServiceConfig) withDefaults() VerificationServiceConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 3 * time.Minute
	}
	if c.ConfirmInterval <= 0 {
		c.ConfirmInterval = 5 * time.Second
	}
	return c
}
