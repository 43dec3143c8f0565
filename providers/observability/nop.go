package observability

import "context"

type nopProvider struct{}

type nopSpan struct{}

type nopMetric struct{}

// Nop returns a Provider that discards everything. It is what the client
// falls back to when no observer is configured.
func Nop() Provider { return nopProvider{} }

func (nopProvider) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, nopSpan{}
}
func (nopProvider) Counter(string) Counter { return nopMetric{} }
func (nopProvider) Histogram(string) Histogram { return nopMetric{} }
func (nopProvider) Trace(context.Context, string, ...Attribute) {}
func (nopProvider) Debug(context.Context, string, ...Attribute) {}
func (nopProvider) Info(context.Context, string, ...Attribute) {}
func (nopProvider) Warn(context.Context, string, ...Attribute) {}
func (nopProvider) Error(context.Context, string, ...Attribute) {}
func (nopSpan) End() {}
func (nopSpan) SetAttributes(...Attribute) {}
func (nopSpan) SetStatus(StatusCode, string) {}
func (nopSpan) RecordError(error) {}
func (nopSpan) AddEvent(string, ...Attribute) {}
func (nopMetric) Add(context.Context, int64, ...Attribute) {}
func (nopMetric) Record(context.Context, float64, ...Attribute) {}
