package report

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/transparentcare/billcheck/internal/billtest"
	"github.com/transparentcare/billcheck/internal/extraction"
)

func multipartBody(filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		extractor *mockExtractor
		service   *Service
		server    *Server
		recorder  *httptest.ResponseRecorder
		request   *http.Request
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = newMockExtractor()
		service = NewServiceWithDeps(db, extractor, storage, billtest.SampleTable(),
			&mockIDGenerator{id: "test-id-123"}, &defaultTimeSource{})
		server = NewServer(service, BasicAuth{})
		recorder = httptest.NewRecorder()
	})

	JustBeforeEach(func() {
		server.ServeHTTP(recorder, request)
	})

	Describe("POST /api/bills", func() {
		BeforeEach(func() {
			body, contentType := multipartBody("bill.jpg", []byte("fake image"))
			request = httptest.NewRequest("POST", "/api/bills", body)
			request.Header.Set("Content-Type", contentType)
		})

		When("processing succeeds", func() {
			It("should return 201", func() {
				Expect(recorder.Code).To(Equal(http.StatusCreated))
			})

			It("should return the processed report", func() {
				var rep BillReport
				Expect(json.Unmarshal(recorder.Body.Bytes(), &rep)).To(Succeed())
				Expect(rep.ID).To(Equal("test-id-123"))
				Expect(rep.Bill.Provider).To(Equal("City General Hospital"))
				Expect(rep.Results).To(HaveLen(4))
			})
		})

		When("no file is provided", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("POST", "/api/bills", strings.NewReader("not multipart"))
				request.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
			})

			It("should return 400", func() {
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("the extractor returns unstructured text", func() {
			BeforeEach(func() {
				extractor.extractErr = &extraction.UnstructuredInputError{Snippet: "free text"}
			})

			It("should return 422", func() {
				Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
			})

			It("should mark the error retryable", func() {
				var resp map[string]interface{}
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["retryable"]).To(Equal(true))
			})
		})
	})

	Describe("POST /api/reports", func() {
		BeforeEach(func() {
			payload, err := json.Marshal(billtest.SampleRawBill())
			Expect(err).NotTo(HaveOccurred())
			request = httptest.NewRequest("POST", "/api/reports", bytes.NewBuffer(payload))
			request.Header.Set("Content-Type", "application/json")
		})

		When("the bill is valid", func() {
			It("should return 201", func() {
				Expect(recorder.Code).To(Equal(http.StatusCreated))
			})

			It("should persist the report", func() {
				Expect(db.reports).To(HaveKey("test-id-123"))
			})
		})

		When("the bill has no charges", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("POST", "/api/reports",
					strings.NewReader(`{"patient": "Jane Doe", "charges": [], "subtotal": ""}`))
			})

			It("should return 422 with a retryable error", func() {
				Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
				var resp map[string]interface{}
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["retryable"]).To(Equal(true))
			})
		})

		When("the body is not JSON", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("POST", "/api/reports", strings.NewReader("not json"))
			})

			It("should return 400", func() {
				Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/reports", func() {
		BeforeEach(func() {
			request = httptest.NewRequest("GET", "/api/reports", nil)
		})

		When("no reports exist", func() {
			It("should return an empty array", func() {
				Expect(recorder.Code).To(Equal(http.StatusOK))
				Expect(strings.TrimSpace(recorder.Body.String())).To(Equal("[]"))
			})
		})

		When("reports exist", func() {
			BeforeEach(func() {
				_, err := service.ProcessStructured(billtest.SampleRawBill())
				Expect(err).NotTo(HaveOccurred())
			})

			It("should list them", func() {
				var reports []*BillReport
				Expect(json.Unmarshal(recorder.Body.Bytes(), &reports)).To(Succeed())
				Expect(reports).To(HaveLen(1))
			})
		})
	})

	Describe("GET /api/reports/{id}", func() {
		When("the report exists", func() {
			BeforeEach(func() {
				_, err := service.ProcessStructured(billtest.SampleRawBill())
				Expect(err).NotTo(HaveOccurred())
				request = httptest.NewRequest("GET", "/api/reports/test-id-123", nil)
			})

			It("should return the report", func() {
				Expect(recorder.Code).To(Equal(http.StatusOK))
				var rep BillReport
				Expect(json.Unmarshal(recorder.Body.Bytes(), &rep)).To(Succeed())
				Expect(rep.ID).To(Equal("test-id-123"))
			})
		})

		When("the report does not exist", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("GET", "/api/reports/missing", nil)
			})

			It("should return 404", func() {
				Expect(recorder.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("POST /api/reports/{id}/letter", func() {
		BeforeEach(func() {
			_, err := service.ProcessStructured(billtest.SampleRawBill())
			Expect(err).NotTo(HaveOccurred())
			request = httptest.NewRequest("POST", "/api/reports/test-id-123/letter", nil)
		})

		When("charges are flagged", func() {
			It("should return 201 with the letter", func() {
				Expect(recorder.Code).To(Equal(http.StatusCreated))
				var resp map[string]interface{}
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["flagged_count"]).To(BeEquivalentTo(2))
				Expect(resp["body"]).To(ContainSubstring("CPT 99285: billed $1250.00 (reference $900.00)"))
			})
		})

		When("no charge is above reference", func() {
			BeforeEach(func() {
				raw := billtest.SampleRawBill()
				raw.Charges = raw.Charges[1:2] // CT scan only, billed at reference
				db.reports = map[string]*BillReport{}
				_, err := service.ProcessStructured(raw)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return a positive nothing-to-dispute result, not an error", func() {
				Expect(recorder.Code).To(Equal(http.StatusOK))
				var resp map[string]interface{}
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["nothing_to_dispute"]).To(Equal(true))
			})
		})

		When("the report does not exist", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("POST", "/api/reports/missing/letter", nil)
			})

			It("should return 500", func() {
				Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("GET /api/reports/{id}/letter", func() {
		When("a letter was generated", func() {
			BeforeEach(func() {
				_, err := service.ProcessStructured(billtest.SampleRawBill())
				Expect(err).NotTo(HaveOccurred())
				_, err = service.GenerateLetterByID("test-id-123")
				Expect(err).NotTo(HaveOccurred())
				request = httptest.NewRequest("GET", "/api/reports/test-id-123/letter", nil)
			})

			It("should return the letter body as plain text", func() {
				Expect(recorder.Code).To(Equal(http.StatusOK))
				Expect(recorder.Header().Get("Content-Type")).To(ContainSubstring("text/plain"))
				Expect(recorder.Body.String()).To(ContainSubstring("To Whom It May Concern,"))
			})
		})

		When("no letter exists", func() {
			BeforeEach(func() {
				request = httptest.NewRequest("GET", "/api/reports/missing/letter", nil)
			})

			It("should return 404", func() {
				Expect(recorder.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("DELETE /api/reports/{id}", func() {
		When("the report exists", func() {
			BeforeEach(func() {
				_, err := service.ProcessStructured(billtest.SampleRawBill())
				Expect(err).NotTo(HaveOccurred())
				request = httptest.NewRequest("DELETE", "/api/reports/test-id-123", nil)
			})

			It("should return 204", func() {
				Expect(recorder.Code).To(Equal(http.StatusNoContent))
			})

			It("should remove the report", func() {
				Expect(db.reports).To(BeEmpty())
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			server = NewServer(service, BasicAuth{Username: "user", Password: "pass"})
			request = httptest.NewRequest("GET", "/api/reports", nil)
		})

		When("no credentials are supplied", func() {
			It("should return 401", func() {
				Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			})
		})

		When("valid credentials are supplied", func() {
			BeforeEach(func() {
				request.SetBasicAuth("user", "pass")
			})

			It("should return 200", func() {
				Expect(recorder.Code).To(Equal(http.StatusOK))
			})
		})

		When("wrong credentials are supplied", func() {
			BeforeEach(func() {
				request.SetBasicAuth("user", "wrong")
			})

			It("should return 401", func() {
				Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			})
		})
	})
})
