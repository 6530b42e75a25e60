package domain

// SubmissionStatus tracks a submission through the processing pipeline.
//
// SUBMITTED -> {PROCESSING | PROCESSED_BY_EMAIL | REJECTED_BY_VIRUS_SCAN},
// then PROCESSING -> {READY_TO_SUBMIT | REJECTED_BY_DOCUMENT_CONVERTER} and
// finally READY_TO_SUBMIT -> SENT_TO_FES. QUEUED is part of the persisted
// status vocabulary but is not a state the pipeline itself transitions into;
// dispatched submissions go straight to PROCESSING.
type SubmissionStatus string

const (
	StatusSubmitted                   SubmissionStatus = "SUBMITTED"
	StatusProcessing                  SubmissionStatus = "PROCESSING"
	StatusReadyToSubmit               SubmissionStatus = "READY_TO_SUBMIT"
	StatusQueued                      SubmissionStatus = "QUEUED"
	StatusProcessedByEmail            SubmissionStatus = "PROCESSED_BY_EMAIL"
	StatusRejectedByDocumentConverter SubmissionStatus = "REJECTED_BY_DOCUMENT_CONVERTER"
	StatusRejectedByVirusScan         SubmissionStatus = "REJECTED_BY_VIRUS_SCAN"
	StatusSentToFes                   SubmissionStatus = "SENT_TO_FES"
)

// ConversionStatus tracks a single attachment through scan and conversion.
type ConversionStatus string

const (
	ConversionWaiting   ConversionStatus = "WAITING"
	ConversionQueued    ConversionStatus = "QUEUED"
	ConversionCleanAV   ConversionStatus = "CLEAN_AV"
	ConversionFailedAV  ConversionStatus = "FAILED_AV"
	ConversionConverted ConversionStatus = "CONVERTED"
	ConversionFailed    ConversionStatus = "FAILED"
)

// DecisionResult is the aggregate outcome of one evaluation pass over a
// submission's attachments. Exactly one value is resolved per pass.
type DecisionResult string

const (
	NoDecision           DecisionResult = "NO_DECISION"
	NotClean             DecisionResult = "NOT_CLEAN"
	FormTypeDoesNotExist DecisionResult = "FORM_TYPE_DOES_NOT_EXIST"
	FesEnabled           DecisionResult = "FES_ENABLED"
	NotFesEnabled        DecisionResult = "NOT_FES_ENABLED"
)

// ServiceLevel selects a delayed-submission handling strategy.
type ServiceLevel string

const (
	ServiceLevelStandard ServiceLevel = "STANDARD"
	ServiceLevelSameDay  ServiceLevel = "SAMEDAY"
)
