package proxy

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/prognoshealth/serverlessproxy/lambdautils"
)

// InvocationContext carries the lambda invocation metadata forwarded to the
// backing handler. The proxy never inspects it.
type InvocationContext struct {
	AwsRequestID       string `json:"awsRequestId,omitempty"`
	InvokedFunctionArn string `json:"invokedFunctionArn,omitempty"`
	FunctionName       string `json:"functionName,omitempty"`
	FunctionVersion    string `json:"functionVersion,omitempty"`
	MemoryLimitInMB    int    `json:"memoryLimitInMB,omitempty"`
	LogGroupName       string `json:"logGroupName,omitempty"`
	LogStreamName      string `json:"logStreamName,omitempty"`
}

// NewInvocationContext builds an InvocationContext from the lambda context
// attached to ctx and the lambda environment.
func NewInvocationContext(ctx context.Context) InvocationContext {
	meta := lambdautils.GetLambdaMetaData(ctx)

	return InvocationContext{
		AwsRequestID:       meta.RequestID,
		InvokedFunctionArn: meta.InvokedFunctionArn,
		FunctionName:       meta.FunctionName,
		FunctionVersion:    meta.FunctionVersion,
		MemoryLimitInMB:    meta.MemoryLimitInMB,
		LogGroupName:       meta.LogGroupName,
		LogStreamName:      meta.LogStreamName,
	}
}

// Faults are failures injected into a single invocation. They only take
// effect on a proxy built with WithTestMode(true).
type Faults struct {
	// FailPrepare fails while building the local request.
	FailPrepare bool

	// ResetConnection closes the local connection as soon as it is dialed.
	ResetConnection bool
}

// Invocation is one event together with its context.
type Invocation struct {
	Event   events.APIGatewayProxyRequest
	Context InvocationContext
	Faults  Faults
}
