package code

var (
	Success = NewSuss(1, lang{en: "Success", zh_cn: "成功"})

	Failed              = NewError(0, lang{en: "Failed", zh_cn: "失败"})
	ErrorInvalidParams  = NewError(400, lang{en: "Invalid parameters", zh_cn: "参数错误"})
	ErrorNotFound       = NewError(404, lang{en: "Resource not found", zh_cn: "资源不存在"})
	ErrorServerInternal = NewError(500, lang{en: "Internal server error", zh_cn: "服务器内部错误"})
	ErrorRequestTimeout = NewError(504, lang{en: "Request timed out", zh_cn: "请求超时"})

	ErrorInvalidAuthToken = NewError(401, lang{en: "Invalid access token", zh_cn: "访问令牌无效"})
	ErrorTooManyRequests  = NewError(429, lang{en: "Too many requests", zh_cn: "请求过于频繁"})

	// 笔记校验
	ErrorValidation = NewError(421, lang{en: "Title and content must not be empty", zh_cn: "标题和内容不能为空"})

	// 钱包连接
	ErrorWalletNotConnected = NewError(431, lang{en: "Wallet is not connected", zh_cn: "钱包未连接"})
	ErrorProviderNotFound   = NewError(432, lang{en: "Wallet provider not found", zh_cn: "未找到钱包插件"})
	ErrorUserRejected       = NewError(433, lang{en: "Wallet connection was rejected", zh_cn: "用户拒绝了钱包连接"})
	ErrorAddressRetrieval   = NewError(434, lang{en: "Failed to read wallet address", zh_cn: "读取钱包地址失败"})
	ErrorNoActiveSession    = NewError(435, lang{en: "No active wallet session", zh_cn: "没有活动的钱包会话"})
	ErrorConnectInProgress  = NewError(436, lang{en: "A wallet connection is already in progress", zh_cn: "钱包正在连接中"})
	ErrorProviderFailure    = NewError(437, lang{en: "Wallet provider failed", zh_cn: "钱包插件调用失败"})

	// 签名与提交
	ErrorSigningRejected = NewError(441, lang{en: "Transaction signing was rejected", zh_cn: "用户拒绝签名交易"})
	ErrorSubmission      = NewError(442, lang{en: "Transaction submission failed", zh_cn: "交易提交失败"})

	// 持久化与编排
	ErrorPersistence         = NewError(451, lang{en: "Notes service request failed", zh_cn: "笔记服务请求失败"})
	ErrorSubmitInProgress    = NewError(452, lang{en: "A submission for this note is already in progress", zh_cn: "该笔记正在提交中"})
	ErrorConfirmationTimeout = NewError(453, lang{en: "Transaction was not confirmed in time", zh_cn: "交易确认超时"})
	ErrorNoteNotFound        = NewError(454, lang{en: "Note not found", zh_cn: "笔记不存在"})
	ErrorSagaNotFound        = NewError(455, lang{en: "No pending create for this note", zh_cn: "该笔记没有待完成的创建"})
	ErrorAlreadyAnchored     = NewError(456, lang{en: "Note is already anchored", zh_cn: "笔记已上链"})

	// 链上校验
	ErrorTxNotFound           = NewError(461, lang{en: "Transaction not found on chain", zh_cn: "链上未找到交易"})
	ErrorVerificationNotFound = NewError(462, lang{en: "Verification record not found", zh_cn: "校验记录不存在"})
	ErrorExplorer             = NewError(463, lang{en: "Chain explorer request failed", zh_cn: "链浏览器请求失败"})
	ErrorRetryNotAllowed      = NewError(464, lang{en: "Verification record cannot be retried", zh_cn: "校验记录不可重试"})
)
