package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
)

func TestClientSendRequest(t *testing.T) {
	const webhookURL = "http://oracle.test/webhook/abc"
	respBody := `{"response":"{\"reply\":\"I can do 900\"}","threadId":"t-1"}`

	var capturedURL string
	var capturedHeaders http.Header
	var payload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := NewClient(webhookURL, "s3cret", WithHTTPClient(&http.Client{Transport: rt}))
	thread := "t-1"
	raw, err := client.Send(context.Background(), Message{Prompt: "hello", ThreadID: &thread})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw != respBody {
		t.Fatalf("unexpected body %q", raw)
	}
	if capturedURL != webhookURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get(secretHeader) != "s3cret" {
		t.Fatalf("secret header missing")
	}
	if capturedHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", capturedHeaders.Get("Content-Type"))
	}
	if payload["message"] != "hello" || payload["threadId"] != "t-1" || payload["type"] != messageType {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestClientSendSendsNullThread(t *testing.T) {
	var payload map[string]any
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		bodyBytes, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(bodyBytes, &payload)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("plain")), Header: http.Header{}}, nil
	})

	client := NewClient("http://oracle.test", "s3cret", WithHTTPClient(&http.Client{Transport: rt}))
	if _, err := client.Send(context.Background(), Message{Prompt: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	value, ok := payload["threadId"]
	if !ok || value != nil {
		t.Fatalf("expected explicit null threadId, got %+v", payload)
	}
}

func TestClientSendNon2xxIsDependencyError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("upstream down")),
			Header:     http.Header{},
		}, nil
	})

	client := NewClient("http://oracle.test", "s3cret", WithHTTPClient(&http.Client{Transport: rt}))
	_, err := client.Send(context.Background(), Message{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status in error, got %q", err.Error())
	}
}

func TestClientSendTransportError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	client := NewClient("http://oracle.test", "s3cret", WithHTTPClient(&http.Client{Transport: rt}))
	_, err := client.Send(context.Background(), Message{Prompt: "hi"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientConfigured(t *testing.T) {
	if NewClient("http://oracle.test", "").Configured() {
		t.Fatal("client without secret should not be configured")
	}
	if !NewClient("http://oracle.test", "s3cret").Configured() {
		t.Fatal("client with secret should be configured")
	}
	var nilClient *Client
	if nilClient.Configured() {
		t.Fatal("nil client should not be configured")
	}

	_, err := NewClient("http://oracle.test", "").Send(context.Background(), Message{Prompt: "hi"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeMisconfigured) {
		t.Fatalf("expected misconfigured error, got %v", err)
	}
}

func TestWithWebhookURLOverrides(t *testing.T) {
	client := NewClient("http://default.test", "s3cret", WithWebhookURL("  http://override.test  "), WithWebhookURL(""))
	if client.webhookURL != "http://override.test" {
		t.Fatalf("unexpected webhook url %q", client.webhookURL)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
