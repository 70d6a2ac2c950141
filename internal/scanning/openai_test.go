package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("OpenAI", func() {
	var (
		server     *ghttp.Server
		classifier *OpenAI
		completion string
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()

		var newErr error
		classifier, newErr = NewOpenAI("sk-test", "", server.URL()+"/v1/")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		completion, err = classifier.Complete(context.Background(), "classify this")
	})

	When("the API answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
				ghttp.VerifyJSONRepresenting(openAIChatRequest{
					Model:    "gpt-4o-mini",
					Messages: []openAIMessage{{Role: "user", Content: "classify this"}},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"choices": []map[string]any{
						{"message": map[string]any{"role": "assistant", "content": "TOTAL_PRICE: $9.99\nCATEGORY: Dining"}},
					},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the first choice", func() {
			Expect(completion).To(Equal("TOTAL_PRICE: $9.99\nCATEGORY: Dining"))
		})
	})

	When("the API returns no choices", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"choices": []any{}}))
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("no completion choices")))
		})
	})

	When("the API rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"error":"bad key"}`))
		})

		It("should include the status code", func() {
			Expect(err).To(MatchError(ContainSubstring("status 401")))
		})
	})
})

var _ = Describe("NewOpenAI", func() {
	It("should require an API key", func() {
		_, err := NewOpenAI("", "", "")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})

	It("should default the model and base URL", func() {
		c, err := NewOpenAI("sk-test", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.model).To(Equal("gpt-4o-mini"))
		Expect(c.baseURL).To(Equal("https://api.openai.com/v1"))
	})
})
