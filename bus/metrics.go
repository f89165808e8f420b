package bus

import "sync/atomic"

type MetricsSnapshot struct {
	Subscriptions int64
	Published     int64
	Delivered     int64
	Dropped       int64
	Broadcasts    int64
	HandlerErrors int64
}

type Metrics struct {
	subscriptions atomic.Int64
	published     atomic.Int64
	delivered     atomic.Int64
	dropped       atomic.Int64
	broadcasts    atomic.Int64
	handlerErrors atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSubscription(delta int) {
	m.subscriptions.Add(int64(delta))
}

func (m *Metrics) RecordPublished(delta int) {
	m.published.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.delivered.Add(int64(delta))
}

func (m *Metrics) RecordDropped(delta int) {
	m.dropped.Add(int64(delta))
}

func (m *Metrics) RecordBroadcast(delta int) {
	m.broadcasts.Add(int64(delta))
}

func (m *Metrics) RecordHandlerError(delta int) {
	m.handlerErrors.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Subscriptions: m.subscriptions.Load(),
		Published:     m.published.Load(),
		Delivered:     m.delivered.Load(),
		Dropped:       m.dropped.Load(),
		Broadcasts:    m.broadcasts.Load(),
		HandlerErrors: m.handlerErrors.Load(),
	}
}
