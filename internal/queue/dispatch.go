package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"filing-processor/internal/domain"
)

// All entries share one FIFO message group so the converter consumes them in
// dispatch order.
const messageGroupID = "filing-processor"

// SQS caps SendMessageBatch at ten entries per request.
const maxEntriesPerBatch = 10

// DispatchError reports a failed batch-send to the conversion queue.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("queue dispatch: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

type sqsAPI interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// Dispatcher converts accepted decisions into partitioned batch messages on
// the conversion work queue.
type Dispatcher struct {
	client    sqsAPI
	queueURL  string
	batchSize int
	newID     func() string
}

func NewDispatcher(client sqsAPI, queueURL string, batchSize int) *Dispatcher {
	if batchSize <= 0 || batchSize > maxEntriesPerBatch {
		batchSize = maxEntriesPerBatch
	}
	return &Dispatcher{
		client:    client,
		queueURL:  queueURL,
		batchSize: batchSize,
		newID:     uuid.NewString,
	}
}

type messageBody struct {
	SubmissionID string `json:"submission_id"`
	FileID       string `json:"file_id"`
}

// QueueMessages flattens the decisions to one entry per (submission,
// attachment) pair and sends them in partition order. No decisions or no
// attachments means no queue calls at all.
func (d *Dispatcher) QueueMessages(ctx context.Context, decisions []domain.Decision) error {
	entries, err := d.buildEntries(decisions)
	if err != nil {
		return &DispatchError{Err: err}
	}

	for _, batch := range partition(entries, d.batchSize) {
		out, err := d.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(d.queueURL),
			Entries:  batch,
		})
		if err != nil {
			return &DispatchError{Err: err}
		}
		if len(out.Failed) > 0 {
			first := out.Failed[0]
			return &DispatchError{Err: fmt.Errorf("%d entries failed, first: %s %s",
				len(out.Failed), aws.ToString(first.Code), aws.ToString(first.Message))}
		}
	}
	return nil
}

func (d *Dispatcher) buildEntries(decisions []domain.Decision) ([]types.SendMessageBatchRequestEntry, error) {
	var entries []types.SendMessageBatchRequestEntry
	for _, decision := range decisions {
		sub := decision.Submission
		for _, att := range sub.FormDetails.Attachments {
			body, err := json.Marshal(messageBody{SubmissionID: sub.ID, FileID: att.FileID})
			if err != nil {
				return nil, err
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:                     aws.String(d.newID()),
				MessageBody:            aws.String(string(body)),
				MessageDeduplicationId: aws.String(d.newID()),
				MessageGroupId:         aws.String(messageGroupID),
				MessageAttributes: map[string]types.MessageAttributeValue{
					"submissionId": {DataType: aws.String("String"), StringValue: aws.String(sub.ID)},
					"fileId":       {DataType: aws.String("String"), StringValue: aws.String(att.FileID)},
				},
			})
		}
	}
	return entries, nil
}

func partition(entries []types.SendMessageBatchRequestEntry, size int) [][]types.SendMessageBatchRequestEntry {
	var batches [][]types.SendMessageBatchRequestEntry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}
