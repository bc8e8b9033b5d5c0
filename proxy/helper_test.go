package proxy

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
)

func testEvent(method HttpMethod, path string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method.String(),
		Path:       path,
		Headers:    map[string]string{},
	}
}

func testContext() InvocationContext {
	return InvocationContext{AwsRequestID: "0"}
}

func testInvocation(event events.APIGatewayProxyRequest) Invocation {
	return Invocation{Event: event, Context: testContext()}
}

// dummyEvent loads testdata/<name>.json.
func dummyEvent(t *testing.T, name string) events.APIGatewayProxyRequest {
	t.Helper()

	content, err := os.ReadFile("testdata/" + name + ".json")
	require.NoError(t, err)

	var event events.APIGatewayProxyRequest
	require.NoError(t, json.Unmarshal(content, &event))

	return event
}

// testSocketDir returns a short lived directory for sockets. t.TempDir names
// can exceed the unix socket path limit.
func testSocketDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "sp")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return dir
}
