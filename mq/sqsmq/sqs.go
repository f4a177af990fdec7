package sqsmq

import (
	"context"
	"fmt"

	"github.com/abearman/mindful-sub000/mq"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type SQSClient interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSMessageQueue struct {
	client   SQSClient
	queueURL string
}

func NewSQSMessageQueue(ctx context.Context, devMode bool, sqsEndpoint string, queueName string) (*SQSMessageQueue, error) {
	client, err := newSQSClient(ctx, devMode, sqsEndpoint)
	if err != nil {
		return nil, err
	}

	queueURL, err := getQueueURL(ctx, client, queueName)
	if err != nil {
		return nil, fmt.Errorf("queue %q not found in SQS: %w", queueName, err)
	}

	return NewWithClient(client, queueURL), nil
}

func NewWithClient(client SQSClient, queueURL string) *SQSMessageQueue {
	return &SQSMessageQueue{client: client, queueURL: queueURL}
}

func (sqsmq *SQSMessageQueue) Send(ctx context.Context, body string) error {
	return sendMessage(ctx, sqsmq, body)
}

func (sqsmq *SQSMessageQueue) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	return receiveMessage(ctx, sqsmq, visibilityTimeout)
}

func (sqsmq *SQSMessageQueue) Delete(ctx context.Context, msg *mq.Message) error {
	return deleteMessage(ctx, sqsmq, msg)
}
