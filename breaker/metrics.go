package breaker

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 请求总数 (Counter)
	// 按 outcome 维度区分：success / failure / timeout / rejected
	MetricRequestsTotal = "breaker_requests_total"

	// MetricStateTransitionsTotal 状态变更次数 (Counter)
	MetricStateTransitionsTotal = "breaker_state_transitions_total"

	// MetricState 当前状态 (Gauge)：0 闭合、1 半开、2 打开
	MetricState = "breaker_state"

	// LabelService 服务名标签
	LabelService = "service"

	// LabelOutcome 调用结果标签
	LabelOutcome = "outcome"

	// LabelFromState 源状态标签
	LabelFromState = "from"

	// LabelToState 目标状态标签
	LabelToState = "to"

	// OutcomeSuccess 调用成功
	OutcomeSuccess = "success"

	// OutcomeFailure 调用失败（操作错误）
	OutcomeFailure = "failure"

	// OutcomeTimeout 调用超时
	OutcomeTimeout = "timeout"

	// OutcomeRejected 被熔断快速拒绝
	OutcomeRejected = "rejected"
)
