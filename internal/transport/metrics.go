package transport

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regmap_transport_transactions_total",
		Help: "UDP register transactions by opcode and result",
	}, []string{"op", "result"})
	retransmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regmap_transport_retransmits_total",
		Help: "UDP register requests resent after a timeout",
	}, []string{"op"})
)

// Collectors 返回 UDP 客户端的事务统计, 由调用方注册到自己的 Registry
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{transactions, retransmits}
}

// resultLabel 将事务结果归类为有限的几种标签值
func resultLabel(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
