package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTraceID 追踪 ID 字段
	FieldTraceID = "traceId"

	// FieldAction 锚定动作字段
	FieldAction = "action"

	// FieldNoteID 笔记 ID 字段
	FieldNoteID = "noteId"

	// FieldTxHash 交易哈希字段
	FieldTxHash = "txHash"

	// FieldContentHash 内容哈希字段
	FieldContentHash = "contentHash"

	// FieldProvider 钱包插件名称字段
	FieldProvider = "provider"

	// FieldAddress 钱包地址字段
	FieldAddress = "address"

	// FieldSagaState 创建流程状态字段
	FieldSagaState = "sagaState"

	// FieldStatus 校验状态字段
	FieldStatus = "status"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldURL 请求地址字段
	FieldURL = "url"

	// FieldError 错误信息字段
	FieldError = "error"

	// FieldChunks 分块数量字段
	FieldChunks = "chunks"
)
