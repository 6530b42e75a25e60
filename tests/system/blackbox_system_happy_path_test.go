//go:build system

package system_test

import (
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"filing-processor/internal/domain"
)

var _ = Describe("System blackbox conversion happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var filingDB *sql.DB
	var fesDB *sql.DB

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForPostgres(cfg.FesDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())

		Expect(applyMigration(repoRoot, cfg.PostgresDSN, "001_init.sql")).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.FesDSN, "002_fes_init.sql")).To(Succeed())

		filingDB, err = sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		fesDB, err = sql.Open("postgres", cfg.FesDSN)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterAll(func() {
		if filingDB != nil {
			_ = filingDB.Close()
		}
		if fesDB != nil {
			_ = fesDB.Close()
		}
	})

	It("accepts converter callbacks and moves the submission to READY_TO_SUBMIT", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")
		submissionID := "system-test-" + time.Now().UTC().Format("20060102150405")

		By("seeding a PROCESSING submission with two queued attachments")
		Expect(seedFormTemplate(filingDB, domain.FormTemplate{
			ID: "AP01", FesEnabled: true, FesDocType: "APPOINTMENT", Category: "officers",
		})).To(Succeed())
		Expect(seedSubmission(filingDB, domain.Submission{
			ID:                    submissionID,
			ConfirmationReference: "CONF-" + submissionID,
			Status:                domain.StatusProcessing,
			Company:               domain.Company{Name: "SYSTEM TEST LTD", Number: "09999999"},
			Presenter:             domain.Presenter{Email: "presenter@example.com"},
			FormDetails: domain.FormDetails{
				FormType: "AP01",
				Attachments: []domain.FileAttachment{
					{FileID: "file-1", Name: "first.pdf", ConversionStatus: domain.ConversionQueued},
					{FileID: "file-2", Name: "second.pdf", ConversionStatus: domain.ConversionQueued},
				},
			},
			CreatedAt:      time.Now().UTC(),
			LastModifiedAt: time.Now().UTC(),
		})).To(Succeed())

		By("reporting the first conversion; the submission must stay PROCESSING")
		status, err := postJSON(apiBaseURL+"/v1/submissions/"+submissionID+"/files/file-1/conversion", map[string]any{
			"conversion_status": "CONVERTED",
			"converted_file_id": "conv-file-1",
			"page_count":        3,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusNoContent))

		dbStatus, err := fetchSubmissionStatus(filingDB, submissionID)
		Expect(err).ToNot(HaveOccurred())
		Expect(dbStatus).To(Equal(string(domain.StatusProcessing)))

		By("rejecting a duplicate callback for the same attachment")
		status, err = postJSON(apiBaseURL+"/v1/submissions/"+submissionID+"/files/file-1/conversion", map[string]any{
			"conversion_status": "CONVERTED",
			"converted_file_id": "conv-file-1",
			"page_count":        3,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusConflict))

		By("reporting the second conversion; the submission must become READY_TO_SUBMIT")
		status, err = postJSON(apiBaseURL+"/v1/submissions/"+submissionID+"/files/file-2/conversion", map[string]any{
			"conversion_status": "CONVERTED",
			"converted_file_id": "conv-file-2",
			"page_count":        1,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusNoContent))

		Eventually(func() string {
			s, statusErr := fetchSubmissionStatus(filingDB, submissionID)
			Expect(statusErr).ToNot(HaveOccurred())
			return s
		}, cfg.StatusWaitTimeout, cfg.StatusPollInterval).Should(Equal(string(domain.StatusReadyToSubmit)))

		attStatuses, err := fetchAttachmentStatuses(filingDB, submissionID)
		Expect(err).ToNot(HaveOccurred())
		Expect(attStatuses).To(HaveKeyWithValue("file-1", "CONVERTED"))
		Expect(attStatuses).To(HaveKeyWithValue("file-2", "CONVERTED"))
	})

	It("isolates submissions whose converted files are missing from the object store", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		// The submission seeded above is READY_TO_SUBMIT but its converted
		// files were never uploaded, so the run must complete while leaving
		// the submission behind for the next pass.
		status, err := postEmpty(apiBaseURL + "/v1/runs/submit-to-fes")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusAccepted))

		stuck, err := countRows(filingDB,
			`SELECT COUNT(*) FROM submissions WHERE id LIKE 'system-test-%' AND status = $1`,
			string(domain.StatusReadyToSubmit))
		Expect(err).ToNot(HaveOccurred())
		Expect(stuck).To(BeNumerically(">=", 1))

		forms, err := countRows(fesDB,
			`SELECT COUNT(*) FROM form WHERE company_number = '09999999'`)
		Expect(err).ToNot(HaveOccurred())
		Expect(forms).To(Equal(0))
	})

	It("rejects callbacks for unknown submissions and invalid payloads", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		status, err := postJSON(apiBaseURL+"/v1/submissions/does-not-exist/files/file-1/conversion", map[string]any{
			"conversion_status": "CONVERTED",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound))

		status, err = postJSON(apiBaseURL+"/v1/submissions/does-not-exist/files/file-1/conversion", map[string]any{
			"conversion_status": "DONE",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("rejects run triggers for unknown service levels", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		status, err := postEmpty(apiBaseURL + "/v1/runs/delayed/EXPRESS")
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusBadRequest))
	})
})
