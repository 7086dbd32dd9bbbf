package otel_test

import (
	"context"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go.opentelemetry.io/otel/attribute"

	"github.com/thomaseleff/bunsen/common/otel"
	"github.com/thomaseleff/bunsen/core/config"
)

var _ = Describe("Setup", func() {
	It("is a no-op without an endpoint", func() {
		telemetry, err := otel.Setup(context.Background(), config.OTelConfig{ServiceName: "bunsen"})
		Expect(err).NotTo(HaveOccurred())
		Expect(telemetry).To(BeNil())
	})
})

var _ = Describe("Resource", func() {
	It("describes the service, its environment and the agent login", func() {
		res, err := otel.Resource(config.OTelConfig{
			ServiceName:    "bunsen",
			ServiceVersion: "1.2.3",
			Environment:    "production",
			AgentIdentity:  "dr-bunsen",
		})
		Expect(err).NotTo(HaveOccurred())

		set := res.Set()
		for key, want := range map[attribute.Key]string{
			"service.namespace":      "bunsen",
			"service.name":           "bunsen",
			"service.version":        "1.2.3",
			"deployment.environment": "production",
			"bunsen.agent.identity":  "dr-bunsen",
		} {
			got, ok := set.Value(key)
			Expect(ok).To(BeTrue(), string(key))
			Expect(got.AsString()).To(Equal(want), string(key))
		}
	})

	It("omits unset optional attributes", func() {
		res, err := otel.Resource(config.OTelConfig{ServiceName: "bunsen"})
		Expect(err).NotTo(HaveOccurred())

		_, ok := res.Set().Value("bunsen.agent.identity")
		Expect(ok).To(BeFalse())
	})
})

var _ = DescribeTable("TraceRequest",
	func(path string, traced bool) {
		Expect(otel.TraceRequest(httptest.NewRequest("GET", path, nil))).To(Equal(traced))
	},
	Entry("root liveness", "/", false),
	Entry("health check", "/health", false),
	Entry("webhook delivery", "/github-webhook", true),
)

var _ = DescribeTable("ParseHeaders",
	func(input string, expected map[string]string) {
		Expect(otel.ParseHeaders(input)).To(Equal(expected))
	},
	Entry("empty", "", map[string]string{}),
	Entry("single pair", "x-api-key=abc", map[string]string{"x-api-key": "abc"}),
	Entry("trims whitespace", " a = 1 , b=2 ", map[string]string{"a": "1", "b": "2"}),
	Entry("keeps '=' in values", "auth=Basic a=b", map[string]string{"auth": "Basic a=b"}),
	Entry("skips malformed pairs", "novalue,k=v", map[string]string{"k": "v"}),
)
