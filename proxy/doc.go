// Package proxy runs a plain net/http handler inside an aws lambda function
// fronted by api gateway. Each events.APIGatewayProxyRequest is replayed as a
// real http request against the handler, served from a unix socket in the
// function's temp dir, and the handler's response is converted back into an
// events.APIGatewayProxyResponse.
//
// The original event and lambda context reach the handler through the
// x-apigateway-event and x-apigateway-context headers; wrap the handler with
// Middleware to read them back with EventFromRequest and ContextFromRequest.
//
// Responses whose content type matches the configured binary mime types are
// returned base64 encoded. Repeated set-cookie headers are spread over case
// variations of the header name since a reply holds one value per name.
package proxy
