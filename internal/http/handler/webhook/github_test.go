package webhook_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/thomaseleff/bunsen/internal/http/handler/webhook"
	"github.com/thomaseleff/bunsen/internal/mapper"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/service"
)

var secret = []byte("muppet-labs")

func send(router *gin.Engine, eventType string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/github-webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if eventType != "" {
		req.Header.Set("X-GitHub-Event", eventType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signed(body []byte) map[string]string {
	return map[string]string{"X-Hub-Signature-256": service.SignBody(body, secret)}
}

func message(w *httptest.ResponseRecorder) string {
	var resp map[string]string
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp["msg"]
}

var labeledPayload = []byte(`{
	"action": "labeled",
	"label": {"name": "ready-for-dev"},
	"repository": {"full_name": "muppet/labs"},
	"issue": {"number": 7},
	"installation": {"id": 42},
	"sender": {"login": "kermit"}
}`)

var _ = Describe("GitHubWebhookHandler", func() {
	var (
		router     *gin.Engine
		dispatcher *fakeDispatcher
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		dispatcher = &fakeDispatcher{action: service.Action{Kind: service.ActionIgnored, Message: "Github event processed successfully."}}
		h := webhook.NewGitHubWebhookHandler(secret, mapper.NewGitHubEventMapper("agentbot", "ready-for-dev"), dispatcher)
		router = gin.New()
		router.POST("/github-webhook", h.HandleEvent)
	})

	Describe("authentication", func() {
		It("returns 401 without a signature header", func() {
			w := send(router, "issues", labeledPayload, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(dispatcher.events).To(BeEmpty())
		})

		It("returns 403 for a signature that does not match the body", func() {
			w := send(router, "issues", labeledPayload, map[string]string{"X-Hub-Signature-256": "sha256=deadbeef"})
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(dispatcher.events).To(BeEmpty())
		})

		It("returns 403 when signed with another secret", func() {
			w := send(router, "issues", labeledPayload, map[string]string{
				"X-Hub-Signature-256": service.SignBody(labeledPayload, []byte("other")),
			})
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("checks the signature before looking at the payload", func() {
			w := send(router, "issues", []byte("not json"), map[string]string{"X-Hub-Signature-256": "sha256=00"})
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})
	})

	It("treats a missing event header as ping", func() {
		body := []byte(`{"zen": "Keep it logically awesome."}`)
		w := send(router, "", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(dispatcher.events).To(HaveLen(1))
		Expect(dispatcher.events[0].Kind).To(Equal(mapper.EventPing))
	})

	It("acknowledges malformed payloads with 200", func() {
		body := []byte(`{"action":`)
		w := send(router, "issues", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(dispatcher.events[0].Kind).To(Equal(mapper.EventUnhandled))
	})

	It("returns the dispatcher's message", func() {
		dispatcher.action = service.Action{Kind: service.ActionDispatched, Message: "Dispatched the Beaker swe-agent for issue #7."}
		w := send(router, "issues", labeledPayload, signed(labeledPayload))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(message(w)).To(Equal("Dispatched the Beaker swe-agent for issue #7."))
	})

	It("attaches delivery fields to the context", func() {
		w := send(router, "issues", labeledPayload, map[string]string{
			"X-Hub-Signature-256": service.SignBody(labeledPayload, secret),
			"X-GitHub-Delivery":   "72d3162e-cc78-11e3-81ab-4c9367dc0958",
		})
		Expect(w.Code).To(Equal(http.StatusOK))

		fields := dispatcher.fields[0]
		Expect(*fields.DeliveryID).To(Equal("72d3162e-cc78-11e3-81ab-4c9367dc0958"))
		Expect(*fields.EventType).To(Equal("issues"))
		Expect(*fields.Repo).To(Equal("muppet/labs"))
		Expect(*fields.IssueNumber).To(Equal(int64(7)))
		Expect(*fields.InstallationID).To(Equal(int64(42)))
	})

	It("generates a delivery id when GitHub sends none", func() {
		send(router, "issues", labeledPayload, signed(labeledPayload))
		Expect(dispatcher.fields[0].DeliveryID).NotTo(BeNil())
		Expect(*dispatcher.fields[0].DeliveryID).To(MatchRegexp(`^\d+$`))
	})
})

var _ = Describe("GitHubWebhookHandler end to end", func() {
	var (
		router  *gin.Engine
		tracker *fakeTracker
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		tracker = &fakeTracker{}
		dispatcher := service.NewDispatcher(&fakeProvider{tracker: tracker}, fakeReplies{}, nil, service.DispatcherConfig{
			Agent:            "agentbot",
			Scanner:          service.ParseMentions,
			MainBranch:       "main",
			WorkflowFilename: "coding_agent.yaml",
			GitHubTimeout:    time.Second,
			LLMTimeout:       time.Second,
		})
		h := webhook.NewGitHubWebhookHandler(secret, mapper.NewGitHubEventMapper("agentbot", "ready-for-dev"), dispatcher)
		router = gin.New()
		router.POST("/github-webhook", h.HandleEvent)
	})

	It("answers a ping", func() {
		body := []byte(`{"zen": "Design for failure."}`)
		w := send(router, "ping", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(message(w)).To(Equal("Ping event received successfully!"))
	})

	It("dispatches once per labeled delivery, redeliveries included", func() {
		for range 2 {
			w := send(router, "issues", labeledPayload, signed(labeledPayload))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(message(w)).To(Equal("Dispatched the Beaker swe-agent for issue #7."))
		}

		Expect(tracker.dispatches).To(HaveLen(2))
		Expect(tracker.posted).To(HaveLen(2))
	})

	It("reports incomplete payloads", func() {
		body := []byte(`{"action": "opened", "repository": {"full_name": "muppet/labs"}, "issue": {"number": 7}}`)
		w := send(router, "issues", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(message(w)).To(Equal("Payload incomplete. Ignoring."))
	})

	It("replies to a summoning comment", func() {
		issueBody := "The lab is noisy"
		tracker.issue = model.Issue{Repo: "muppet/labs", Number: 7, Title: "Lab noise", Body: &issueBody, Author: "kermit"}
		tracker.comments = []model.Comment{
			{Author: "alice", Body: "hi", CreatedAt: t0},
			{Author: "bob", Body: "@agentbot please look", CreatedAt: t0.Add(time.Minute)},
		}
		body := []byte(`{
			"action": "created",
			"repository": {"full_name": "muppet/labs"},
			"issue": {"number": 7},
			"installation": {"id": 42},
			"comment": {"user": {"login": "bob"}, "body": "@agentbot please look"}
		}`)

		w := send(router, "issue_comment", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(message(w)).To(Equal("Github event processed successfully."))
		Expect(tracker.posted).To(Equal([]string{"@bob\n\nMeep.\n\ncc @alice"}))
	})

	It("ignores the agent's own comments", func() {
		body := []byte(`{
			"action": "created",
			"repository": {"full_name": "muppet/labs"},
			"issue": {"number": 7},
			"installation": {"id": 42},
			"comment": {"user": {"login": "agentbot[bot]"}, "body": "@agentbot"}
		}`)

		w := send(router, "issue_comment", body, signed(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(tracker.posted).To(BeEmpty())
	})
})

var _ = Describe("GitHubWebhookHandler after GitHub hangs up", func() {
	var (
		server  *httptest.Server
		tracker *fakeTracker
	)

	commentPayload := []byte(`{
		"action": "created",
		"repository": {"full_name": "muppet/labs"},
		"issue": {"number": 7},
		"installation": {"id": 42},
		"comment": {"user": {"login": "bob"}, "body": "@agentbot please look"}
	}`)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		issueBody := "The lab is noisy"
		tracker = &fakeTracker{
			dispatchDelay: 500 * time.Millisecond,
			issue:         model.Issue{Repo: "muppet/labs", Number: 7, Title: "Lab noise", Body: &issueBody, Author: "kermit"},
			comments: []model.Comment{
				{Author: "alice", Body: "hi", CreatedAt: t0},
				{Author: "bob", Body: "@agentbot please look", CreatedAt: t0.Add(time.Minute)},
			},
		}
		dispatcher := service.NewDispatcher(&fakeProvider{tracker: tracker}, fakeReplies{delay: 500 * time.Millisecond}, nil, service.DispatcherConfig{
			Agent:            "agentbot",
			Scanner:          service.ParseMentions,
			MainBranch:       "main",
			WorkflowFilename: "coding_agent.yaml",
			GitHubTimeout:    5 * time.Second,
			LLMTimeout:       5 * time.Second,
		})
		h := webhook.NewGitHubWebhookHandler(secret, mapper.NewGitHubEventMapper("agentbot", "ready-for-dev"), dispatcher)
		router := gin.New()
		router.POST("/github-webhook", h.HandleEvent)

		server = httptest.NewServer(router)
		DeferCleanup(server.Close)
	})

	// deliver sends a signed delivery and gives up long before the handler finishes.
	deliver := func(eventType string, body []byte) {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/github-webhook", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", eventType)
		req.Header.Set("X-Hub-Signature-256", service.SignBody(body, secret))

		client := &http.Client{Timeout: 100 * time.Millisecond}
		resp, err := client.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		Expect(err).To(HaveOccurred())
	}

	It("still posts the reply", func() {
		deliver("issue_comment", commentPayload)

		Eventually(tracker.Posted).WithTimeout(3 * time.Second).
			Should(Equal([]string{"@bob\n\nMeep.\n\ncc @alice"}))
	})

	It("still dispatches the workflow and posts the tracking comment", func() {
		deliver("issues", labeledPayload)

		Eventually(tracker.Dispatches).WithTimeout(3 * time.Second).Should(Equal(1))
		Eventually(tracker.Posted).WithTimeout(3 * time.Second).
			Should(ConsistOf(ContainSubstring("Dispatched the `coding_agent.yaml` workflow")))
	})
})
