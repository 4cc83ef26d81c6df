package aws

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics is the recording surface used by middleware and services.
type Metrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
	IsEnabled() bool
}

// MetricsClient wraps AWS CloudWatch Metrics operations
type MetricsClient struct {
	client    *cloudwatch.Client
	namespace string
	enabled   bool
}

// NewMetricsClient creates a CloudWatch client. Nothing is sent unless
// CLOUDWATCH_ENABLED=true.
func NewMetricsClient(cfg aws.Config) *MetricsClient {
	namespace := os.Getenv("CLOUDWATCH_NAMESPACE")
	if namespace == "" {
		namespace = "GiftShop"
	}

	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}
}

// PutMetric sends a single metric data point to CloudWatch
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	if !m.enabled {
		return nil
	}

	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric: %w", err)
	}

	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordLatency records a latency/duration metric in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

// RecordValue records a generic value metric
func (m *MetricsClient) RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, value, types.StandardUnitNone, dimensions)
}

func (m *MetricsClient) IsEnabled() bool {
	return m.enabled
}

// NopMetrics discards everything. Used in tests and when AWS is not configured.
type NopMetrics struct{}

func (NopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
func (NopMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}
func (NopMetrics) RecordValue(context.Context, string, float64, map[string]string) error { return nil }
func (NopMetrics) IsEnabled() bool { return false }

// Metric names.
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricOrdersCreated     = "OrdersCreated"
	MetricOrdersFulfilled   = "OrdersFulfilled"
	MetricOrdersCancelled   = "OrdersCancelled"
	MetricOrderValue        = "OrderPayable"
	MetricPaymentCaptured   = "PaymentCaptured"
	MetricPaymentFailed     = "PaymentFailed"
	MetricInventoryReserved = "InventoryReserved"
	MetricInventoryReleased = "InventoryReleased"
	MetricInventoryIssued   = "InventoryIssued"
	MetricInventoryLow      = "InventoryLowStock"
	MetricDiscountApplied   = "DiscountApplied"
	MetricDiscountRejected  = "DiscountRejected"
	MetricCheckoutConflicts = "CheckoutConflicts"
	MetricSQSMessages       = "SQSMessagesProcessed"
	MetricMovesArchived     = "StockMovesArchived"
)
