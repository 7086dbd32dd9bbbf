package logger_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/thomaseleff/bunsen/common/logger"
)

var _ = Describe("StartSpan", func() {
	var recorder *tracetest.SpanRecorder

	BeforeEach(func() {
		previous := otel.GetTracerProvider()
		recorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
		DeferCleanup(func() { otel.SetTracerProvider(previous) })
	})

	attrs := func(kv []attribute.KeyValue) map[attribute.Key]attribute.Value {
		m := make(map[attribute.Key]attribute.Value, len(kv))
		for _, a := range kv {
			m[a.Key] = a.Value
		}
		return m
	}

	It("tags the span with the delivery fields from the context", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			DeliveryID:  logger.Ptr("d-1"),
			Repo:        logger.Ptr("muppets/lab"),
			IssueNumber: logger.Ptr(int64(42)),
		})

		sc := logger.StartSpan(ctx, "github.get_issue", trace.WithSpanKind(trace.SpanKindClient))
		sc.SetOutcome("replied")
		sc.End()

		spans := recorder.Ended()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Name()).To(Equal("github.get_issue"))
		Expect(spans[0].SpanKind()).To(Equal(trace.SpanKindClient))

		got := attrs(spans[0].Attributes())
		Expect(got["github.delivery_id"].AsString()).To(Equal("d-1"))
		Expect(got["github.repository"].AsString()).To(Equal("muppets/lab"))
		Expect(got["github.issue_number"].AsInt64()).To(Equal(int64(42)))
		Expect(got["bunsen.action"].AsString()).To(Equal("replied"))
		Expect(got).NotTo(HaveKey(attribute.Key("github.installation_id")))
	})

	It("marks the span failed on RecordError", func() {
		sc := logger.StartSpan(context.Background(), "llm.generate_reply")
		sc.RecordError(errors.New("boom"))
		sc.RecordError(nil)
		sc.End()

		spans := recorder.Ended()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Status().Code).To(Equal(codes.Error))
		Expect(spans[0].Status().Description).To(Equal("boom"))
	})

	It("parents spans on the context it returns", func() {
		parent := logger.StartSpan(context.Background(), "dispatcher.handle")
		child := logger.StartSpan(parent.Context(), "github.post_comment")
		child.End()
		parent.End()

		spans := recorder.Ended()
		Expect(spans).To(HaveLen(2))
		Expect(spans[0].Parent().SpanID()).To(Equal(spans[1].SpanContext().SpanID()))
	})
})
