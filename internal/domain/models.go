package domain

import "time"

type Company struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type Presenter struct {
	Email string `json:"email"`
}

// PaymentSession references a fee session raised at submission time. The
// pipeline carries these through untouched.
type PaymentSession struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type FileAttachment struct {
	FileID           string           `json:"file_id"`
	Name             string           `json:"name"`
	PageCount        int              `json:"page_count"`
	ConversionStatus ConversionStatus `json:"conversion_status"`
	ConvertedFileID  string           `json:"converted_file_id,omitempty"`
	LastModifiedAt   *time.Time       `json:"last_modified_at,omitempty"`
}

type FormDetails struct {
	FormType    string           `json:"form_type"`
	Barcode     string           `json:"barcode,omitempty"`
	Attachments []FileAttachment `json:"attachments"`
}

type Submission struct {
	ID                    string           `json:"id"`
	ConfirmationReference string           `json:"confirmation_reference"`
	Status                SubmissionStatus `json:"status"`
	Company               Company          `json:"company"`
	Presenter             Presenter        `json:"presenter"`
	FormDetails           FormDetails      `json:"form_details"`
	PaymentSessions       []PaymentSession `json:"payment_sessions,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	SubmittedAt           *time.Time       `json:"submitted_at,omitempty"`
	LastModifiedAt        time.Time        `json:"last_modified_at"`
}

// Attachment returns the attachment with the given file id, or nil.
func (s *Submission) Attachment(fileID string) *FileAttachment {
	for i := range s.FormDetails.Attachments {
		if s.FormDetails.Attachments[i].FileID == fileID {
			return &s.FormDetails.Attachments[i]
		}
	}
	return nil
}

// EffectiveSubmittedAt falls back to the creation time when the submission
// never recorded an explicit submitted-at instant.
func (s *Submission) EffectiveSubmittedAt() time.Time {
	if s.SubmittedAt != nil {
		return *s.SubmittedAt
	}
	return s.CreatedAt
}

// FormTemplate is the catalog metadata for a form type.
type FormTemplate struct {
	ID         string
	FesEnabled bool
	FesDocType string
	SameDay    bool
	Category   string
}

// Decision is the outcome of one evaluation pass over one submission. It is
// built once at the end of the pass and never persisted; its side effects
// persist through submission updates.
type Decision struct {
	Submission    *Submission
	Result        DecisionResult
	InfectedFiles []string
}

// ConversionResult is the payload reported by the document converter for a
// single attachment.
type ConversionResult struct {
	Status          ConversionStatus `json:"conversion_status"`
	ConvertedFileID string           `json:"converted_file_id,omitempty"`
	PageCount       int              `json:"page_count"`
}

// FesAttachment is one attachment's raw bytes and page count, ordered as it
// appears in the submission.
type FesAttachment struct {
	Content   []byte
	PageCount int
}

// FesLoaderRecord is the transient input to the FES loader. One record maps
// to one batch, one envelope and one image+form row per attachment.
type FesLoaderRecord struct {
	Barcode       string
	CompanyName   string
	CompanyNumber string
	FormType      string
	SameDay       bool
	Attachments   []FesAttachment
	SubmittedAt   time.Time
}
