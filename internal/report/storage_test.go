package report

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the file to disk and returns its name", func() {
			savedPath, err := storage.Save("bill.jpg", []byte("document content"))
			Expect(err).NotTo(HaveOccurred())
			Expect(savedPath).To(Equal("bill.jpg"))
			Expect(filepath.Join(tmpDir, "bill.jpg")).To(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("bill.jpg", []byte("document content"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the file data", func() {
				data, err := storage.Get("bill.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("document content"))
			})
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("reading file"))
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("bill.jpg", []byte("data"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("removes the file from disk", func() {
				Expect(storage.Delete("bill.jpg")).To(Succeed())
				Expect(filepath.Join(tmpDir, "bill.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				err := storage.Delete("missing.jpg")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("deleting file"))
			})
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates the directory when missing", func() {
			path := filepath.Join(GinkgoT().TempDir(), "documents")
			_, err := NewLocalStorage(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
